package wire

// Token refresh uses a hand-rolled protobuf wire encoding: the request
// carries the refresh token in field 1 of a submessage stored in field 10,
// and the response carries either a login result in field 8 or an error in
// field 7. Only the handful of fields below are understood; everything else
// is skipped by wire type.

const (
	fieldLoginRequest = 10
	fieldLoginResult  = 8
	fieldLoginError   = 7

	subRefreshToken = 1
	subAuthToken    = 2
	subUserID       = 4
	subErrorMessage = 1

	wireVarint       = 0
	wireLenDelimited = 2
)

// EncodeRefreshAuth builds the token-refresh request body.
func EncodeRefreshAuth(refreshToken string) []byte {
	token := []byte(refreshToken)

	inner := make([]byte, 0, len(token)+6)
	inner = append(inner, subRefreshToken<<3|wireLenDelimited)
	inner = appendVarint(inner, uint64(len(token)))
	inner = append(inner, token...)

	out := make([]byte, 0, len(inner)+6)
	out = append(out, fieldLoginRequest<<3|wireLenDelimited)
	out = appendVarint(out, uint64(len(inner)))
	out = append(out, inner...)
	return out
}

// DecodeAuthResponse parses the token-refresh response. An error field in
// the message short-circuits to a failed result; truncated or malformed
// input yields whatever fields were readable before the damage.
func DecodeAuthResponse(data []byte) *LoginResult {
	result := &LoginResult{Success: true}

	pos := 0
	for pos < len(data) {
		key := data[pos]
		pos++
		fieldNum := int(key >> 3)

		switch fieldNum {
		case fieldLoginResult:
			length, next := readVarint(data, pos)
			pos = next
			end := pos + int(length)
			if end > len(data) {
				end = len(data)
			}
			parseLoginResult(data[pos:end], result)
			pos = end
		case fieldLoginError:
			length, next := readVarint(data, pos)
			pos = next
			end := pos + int(length)
			if end > len(data) {
				end = len(data)
			}
			return &LoginResult{Success: false, ErrorMessage: parseErrorMessage(data[pos:end])}
		default:
			pos = skipField(data, pos, key&0x7)
		}
	}

	return result
}

func parseLoginResult(data []byte, result *LoginResult) {
	pos := 0
	for pos < len(data) {
		key := data[pos]
		pos++
		switch int(key >> 3) {
		case subRefreshToken:
			result.RefreshToken, pos = readString(data, pos)
		case subAuthToken:
			result.AuthToken, pos = readString(data, pos)
		case subUserID:
			result.UserID, pos = readString(data, pos)
		default:
			pos = skipField(data, pos, key&0x7)
		}
	}
}

func parseErrorMessage(data []byte) string {
	pos := 0
	for pos < len(data) {
		key := data[pos]
		pos++
		if int(key>>3) == subErrorMessage {
			message, _ := readString(data, pos)
			return message
		}
		pos = skipField(data, pos, key&0x7)
	}
	return ""
}

func readString(data []byte, pos int) (string, int) {
	length, pos := readVarint(data, pos)
	end := pos + int(length)
	if end > len(data) {
		end = len(data)
	}
	return string(data[pos:end]), end
}

func skipField(data []byte, pos int, wireType byte) int {
	switch wireType {
	case wireLenDelimited:
		length, next := readVarint(data, pos)
		return next + int(length)
	case wireVarint:
		_, next := readVarint(data, pos)
		return next
	default:
		return pos + 1
	}
}

func appendVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7F)|0x80)
		v >>= 7
	}
	return append(dst, byte(v&0x7F))
}

func readVarint(data []byte, pos int) (uint64, int) {
	var result uint64
	var shift uint
	for pos < len(data) {
		b := data[pos]
		pos++
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, pos
}

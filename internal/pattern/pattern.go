package pattern

import (
	"github.com/swipekit/swipekit/internal/timing"
	"github.com/swipekit/swipekit/internal/wire"
)

// Step is one entry in a request pattern: which operation, how many times
// in a burst, and which delay class follows it.
type Step struct {
	Op         wire.Operation
	Repeat     int
	DelayClass timing.Class
	Critical   bool
}

type Name string

const (
	Startup           Name = "startup"
	ProfileCheck      Name = "profile_check"
	LikedMeProcessing Name = "liked_me_processing"
	Maintenance       Name = "maintenance"
)

// Patterns reproduce the request sequences captured from the real mobile
// client. Repeat counts above one model its burst behavior (the same call
// fired several times back to back).
var Patterns = map[Name][]Step{
	Startup: {
		{Op: wire.OpHealthcheckAuth, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpBuckets, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpDeviceCheck, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpProfileConsents, Repeat: 1, DelayClass: timing.ClassMedium, Critical: true},
		{Op: wire.OpDeviceCheck, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpProfile, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpInboxMessages, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpMatches, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpFastMatchCount, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpLanguagePreferences, Repeat: 1, DelayClass: timing.ClassMedium, Critical: true},
		{Op: wire.OpUpdates, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpProfileMeter, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpCampaigns, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpPushDevices, Repeat: 2, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpMetaPost, Repeat: 1, DelayClass: timing.ClassMedium, Critical: true},
	},
	ProfileCheck: {
		{Op: wire.OpFastMatchCount, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpProfileFeatureAccess, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpPaymentMethods, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpMyLikes, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpDuos, Repeat: 1, DelayClass: timing.ClassMicro, Critical: false},
		{Op: wire.OpRecommendations, Repeat: 3, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpCampaignsExtended, Repeat: 1, DelayClass: timing.ClassMicro, Critical: false},
		{Op: wire.OpSubscriptionFeatures, Repeat: 2, DelayClass: timing.ClassMicro, Critical: false},
	},
	LikedMeProcessing: {
		{Op: wire.OpFastMatchCount, Repeat: 3, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpFastMatchNewCount, Repeat: 1, DelayClass: timing.ClassMicro, Critical: false},
		{Op: wire.OpLikedMeBatch, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpFastMatchTeaser, Repeat: 1, DelayClass: timing.ClassMicro, Critical: false},
	},
	Maintenance: {
		{Op: wire.OpUpdates, Repeat: 1, DelayClass: timing.ClassShort, Critical: true},
		{Op: wire.OpReceivedMessages, Repeat: 1, DelayClass: timing.ClassMicro, Critical: false},
		{Op: wire.OpSubscriptionFeatures, Repeat: 2, DelayClass: timing.ClassMicro, Critical: false},
		{Op: wire.OpProfileMeter, Repeat: 1, DelayClass: timing.ClassMicro, Critical: true},
		{Op: wire.OpRecommendations, Repeat: 1, DelayClass: timing.ClassShort, Critical: false},
	},
}

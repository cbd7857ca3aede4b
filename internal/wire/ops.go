package wire

// Operation names a single remote API call. The set is closed: pattern
// tables and the executor only refer to operations listed here.
type Operation string

const (
	OpHealthcheckAuth      Operation = "healthcheck_auth"
	OpBuckets              Operation = "buckets"
	OpDeviceCheck          Operation = "device_check"
	OpProfileConsents      Operation = "profile_consents"
	OpProfile              Operation = "profile"
	OpProfileFeatureAccess Operation = "profile_feature_access"
	OpProfileMeter         Operation = "profile_meter"
	OpInboxMessages        Operation = "inbox_messages"
	OpMatches              Operation = "matches"
	OpFastMatchCount       Operation = "fast_match_count"
	OpFastMatchNewCount    Operation = "fast_match_newcount"
	OpFastMatchTeaser      Operation = "fast_match_teaser"
	OpLikedMeBatch         Operation = "liked_me_batch"
	OpLanguagePreferences  Operation = "user_language_preferences"
	OpUpdates              Operation = "updates"
	OpCampaigns            Operation = "campaigns"
	OpCampaignsExtended    Operation = "campaigns_extended"
	OpPushDevices          Operation = "push_devices"
	OpMetaPost             Operation = "meta_post"
	OpPaymentMethods       Operation = "payment_methods"
	OpMyLikes              Operation = "my_likes"
	OpDuos                 Operation = "duos"
	OpRecommendations      Operation = "recommendations"
	OpSubscriptionFeatures Operation = "subscription_features"
	OpReceivedMessages     Operation = "received_messages"
	OpPurchases            Operation = "purchases"
	OpLike                 Operation = "like"
	OpPass                 Operation = "pass"
	OpUpdateBio            Operation = "update_bio"
	OpUpdatePrompts        Operation = "update_prompts"
	OpLoginRefresh         Operation = "login_refresh"
)

func (o Operation) String() string {
	return string(o)
}

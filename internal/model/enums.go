package model

type AccountLifecycle string

const (
	LifecycleActive   AccountLifecycle = "active"
	LifecycleBanned   AccountLifecycle = "banned"
	LifecycleDead     AccountLifecycle = "dead"
	LifecycleCooldown AccountLifecycle = "cooldown"
)

type SessionPhase string

const (
	PhaseStartup       SessionPhase = "startup"
	PhaseProfileUpdate SessionPhase = "profile_update"
	PhaseBrowsing      SessionPhase = "browsing"
	PhaseLiking        SessionPhase = "liking"
	PhaseMaintenance   SessionPhase = "maintenance"
	PhaseCooldown      SessionPhase = "cooldown"
)

type ActivityType string

const (
	ActivityProfileCheck ActivityType = "profile_check"
	ActivityBioUpdate    ActivityType = "bio_update"
	ActivityPromptUpdate ActivityType = "prompt_update"
	ActivityLike         ActivityType = "like"
	ActivityPass         ActivityType = "pass"
	ActivityQueueBatch   ActivityType = "queue_batch"
	ActivityTokenRefresh ActivityType = "token_refresh"
)

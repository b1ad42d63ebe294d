package domain

type ctxKey string

const (
	RequesterIdCtxKey ctxKey = "vc-requesterId"
)

const (
	RequesterIdHeader = "vc-requester-id"
)

const (
	EventVideoPublished  = "video.published"
	EventVideoUpdated    = "video.updated"
	EventVideoVisibility = "video.visibility"
	EventVideoDeleted    = "video.deleted"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

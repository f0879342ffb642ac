package evolution

// endpoints.go 收录 Evolution API 各控制器的端点路径，
// 所有路径在请求时统一追加 /{instanceId}。
const (
	endpointConnectionState = "/instance/connectionState"

	endpointSendText     = "/message/sendText"
	endpointSendMedia    = "/message/sendMedia"
	endpointSendAudio    = "/message/sendWhatsAppAudio"
	endpointSendSticker  = "/message/sendSticker"
	endpointSendLocation = "/message/sendLocation"
	endpointSendContact  = "/message/sendContact"
	endpointSendReaction = "/message/sendReaction"
	endpointSendPoll     = "/message/sendPoll"
	endpointSendList     = "/message/sendList"
	endpointSendButtons  = "/message/sendButtons"

	endpointCheckNumbers        = "/chat/whatsappNumbers"
	endpointMarkMessageRead     = "/chat/markMessageAsRead"
	endpointSendPresence        = "/chat/sendPresence"
	endpointFetchProfilePicture = "/chat/fetchProfilePictureUrl"
	endpointFetchProfile        = "/chat/fetchProfile"

	endpointFetchAllGroups = "/group/fetchAllGroups"
)

const (
	// GroupJIDSuffix 为群组收件人地址后缀。
	GroupJIDSuffix = "@g.us"
	// UserJIDSuffix 为个人收件人地址后缀。
	UserJIDSuffix = "@s.whatsapp.net"
)

// Presence 取值（chat/sendPresence）。
const (
	PresenceAvailable = "available"
	PresenceComposing = "composing"
	PresenceRecording = "recording"
	PresencePaused    = "paused"
)

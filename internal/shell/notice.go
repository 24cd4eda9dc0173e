package shell

import "time"

// NoticeKind distinguishes informational notices from failures.
type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a transient, dismissible message for the user.
type Notice struct {
	ID          string     `json:"id"`
	Kind        NoticeKind `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
}

const maxNotices = 5

// Disclaimer is shown on every screen.
var Disclaimer = []string{
	"This app provides AI-powered support and is not a replacement for professional medical advice.",
	"If you're in crisis, please contact emergency services or a crisis helpline immediately.",
}

type noticeText struct {
	kind        NoticeKind
	title       string
	description string
}

var (
	noticeConnected = noticeText{NoticeInfo, "Connected",
		"You're now connected to your counselor. Feel free to start talking."}
	noticeDisconnected = noticeText{NoticeInfo, "Disconnected",
		"Your session has ended. Take care of yourself."}
	noticeConnectionIssue = noticeText{NoticeError, "Connection Issue",
		"There was a problem connecting to your counselor. Please try again."}
	noticePermissionGranted = noticeText{NoticeInfo, "Microphone Access Granted",
		"You can now start your conversation with the counselor."}
	noticePermissionRequired = noticeText{NoticeError, "Microphone Access Required",
		"Please allow microphone access to have a voice conversation."}
	noticeAgentRequired = noticeText{NoticeError, "Agent ID Required",
		"Please enter your ElevenLabs Agent ID to start the conversation."}
	noticeConnectionFailed = noticeText{NoticeError, "Connection Failed",
		"Unable to connect to the counselor. Please check your Agent ID and try again."}
)

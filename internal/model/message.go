package model

import "time"

// SourceMessage is what the mail provider hands the pipeline: the stable
// external id plus the decoded headers and body. Fetch order is not
// meaningful, the controller sorts by ReceivedAt itself.
type SourceMessage struct {
	GmailID     string
	From        string
	Subject     string
	ReceivedAt  time.Time
	Body        string
	Attachments []SourceAttachment
}

// SourceAttachment is one attached file as reported by the provider. Only
// metadata travels through the pipeline; ProviderRef fetches the blob from
// the provider when a consumer needs it.
type SourceAttachment struct {
	Filename    string
	MimeType    string
	SizeBytes   int64
	ProviderRef string
}

// PrivacyResult is the privacy gate's verdict for one message.
type PrivacyResult struct {
	Passed bool
	Reason string
}

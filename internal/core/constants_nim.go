package core

// NVIDIA NIM API constants
const (
	NIMDefaultBaseURL           = "https://integrate.api.nvidia.com/v1"
	NIMChatCompletionsPath      = "/chat/completions"
	NIMUpstreamStatusMessageFmt = "Request failed with status code %d"
)

package core

// OpenAI object type constants
const (
	ModelObjectType          = "model"
	ModelOwner               = "nvidia-nim-proxy"
	ChatCompletionObjectType = "chat.completion"
	ModelListObjectType      = "list"
)

// ID prefix constants
const (
	ResponseIDPrefix = "chatcmpl-"
)

// OpenAI error envelope constants
const (
	ErrorTypeInvalidRequest  = "invalid_request_error"
	ErrorCodeModelNotFound   = "model_not_found"
	ErrorCodeInvalidJSON     = "invalid_json"
	ErrorMessageInternal     = "Internal server error"
	ErrorMessageBodyTooLarge = "Request body too large"
	ErrorMessageNotFoundFmt  = "Endpoint %s not found on this proxy."
)

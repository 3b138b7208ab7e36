package nodes

// Graph node keys.
const (
	NodeRequestAssembler     = "RequestAssembler"
	NodeInterviewerChatModel = "InterviewerChatModel"
)

package domain

type Mode string

const (
	ModeImage Mode = "image"
	ModeStory Mode = "story"
	ModeVideo Mode = "video"
)

func ValidMode(m string) bool {
	switch Mode(m) {
	case ModeImage, ModeStory, ModeVideo:
		return true
	}
	return false
}

// OperationClass groups operations that share a generation token.
type OperationClass string

const (
	ClassAnalysis OperationClass = "analysis"
	ClassContent  OperationClass = "content"
)

package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyRecord    = " "
	KeyUpload    = "u"
	KeyDiscard   = "d"
	KeyRefresh   = "r"
	KeySummarize = "s"
	KeySuggest   = "g"
	KeySearch    = "/"
)

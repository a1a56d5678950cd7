package collab

// 入站事件
const (
	EventOpenNote      = "openNote"
	EventContentChange = "contentChange"
)

// 出站事件
const (
	EventNoteOpened    = "noteOpened"
	EventNewUser       = "newUser"
	EventContentUpdate = "contentUpdate"
	EventUserLeft      = "userLeft"
)

type OpenNoteRequest struct {
	NoteID string `json:"noteId"`
	Token  string `json:"token"`
}

type ContentChangeRequest struct {
	NoteID  string `json:"noteId"`
	Token   string `json:"token"`
	Content string `json:"content"`
}

type NoteOpened struct {
	Content string `json:"content"`
	NoteID  string `json:"noteId"`
	UserID  string `json:"userId"`
}

type NewUser struct {
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

type ContentUpdate struct {
	Content string `json:"content"`
	NoteID  string `json:"noteId"`
}

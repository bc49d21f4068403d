package events

// Name is the wire name of an inbound command or outbound event.
type Name string

// Inbound commands, each answered with an ack.
const (
	CreateRoom   Name = "create_room"
	JoinRoom     Name = "join_room"
	ReadyToStart Name = "ready_to_start"
	StartGame    Name = "start_game"
	SubmitPoints Name = "submit_points"
	SetName      Name = "set_name"
	ReadyNext    Name = "ready_next"
	LeaveRoom    Name = "leave_room"
)

// Outbound events.
const (
	Lobby              Name = "lobby"
	ReadyToStartStatus Name = "ready_to_start_status"
	CountdownTick      Name = "countdown"
	GameStartedEvent   Name = "game_started"
	ResultsEvent       Name = "results"
	ReadyStatus        Name = "ready_status"
	MatchFinishedEvent Name = "match_finished"
	SubmittedEvent     Name = "submitted"
	Ack                Name = "ack"
)

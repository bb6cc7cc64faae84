package domain

// RoomID names a logical broadcast group (chat room, classroom, shared
// task workspace). The business layer owns room records; the hub only
// tracks live membership.
type RoomID string

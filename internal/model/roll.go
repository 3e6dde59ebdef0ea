package model

import "time"

const RollFaces = 6

// Roll is the persisted view of a roll animation. Position 0 means nothing
// has been highlighted yet.
type Roll struct {
	ID        string
	Final     int
	Position  int
	Remaining int
	Finished  bool
	UpdatedAt time.Time
}

// NextPosition cycles 1..RollFaces.
func NextPosition(p int) int {
	return p%RollFaces + 1
}

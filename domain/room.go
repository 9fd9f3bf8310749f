package domain

import "github.com/samber/lo"

type RoomID string

const (
	RoomDevOps         RoomID = "devops"
	RoomCloudComputing RoomID = "cloud-computing"
	RoomCovid19        RoomID = "covid19"
	RoomSports         RoomID = "sports"
	RoomNodeJS         RoomID = "nodeJS"
)

// Rooms is the fixed set of channels a connection may join.
// Membership is dynamic, the set itself never changes at runtime.
var Rooms = []RoomID{
	RoomDevOps,
	RoomCloudComputing,
	RoomCovid19,
	RoomSports,
	RoomNodeJS,
}

func IsValidRoom(id RoomID) bool {
	return lo.Contains(Rooms, id)
}

func (r RoomID) String() string {
	return string(r)
}

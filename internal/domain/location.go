package domain

// A parcel locker site. Slots belong to exactly one location.
type Location struct {
	LocationID string
	Name       string
	Address    string
	Coords     Coordinates
}

package slab

// Order is the axis-order convention of an array or view.
type Order uint8

const (
	// Forward exposes axes in on-disk order.
	Forward Order = iota
	// Reversed exposes axes last-to-first relative to the disk.
	Reversed
)

// ReverseShapeAttr is the marker attribute that switches a dataset to the
// Reversed convention. Only its presence matters.
const ReverseShapeAttr = "reverse-shape"

func (o Order) String() string {
	switch o {
	case Forward:
		return "forward"
	case Reversed:
		return "reversed"
	default:
		return "unknown"
	}
}

// resolveShape maps on-disk dims to the exposed shape under o.
func resolveShape(disk []uint64, o Order) []uint64 {
	shape := make([]uint64, len(disk))
	if o == Reversed {
		for d := range disk {
			shape[d] = disk[len(disk)-1-d]
		}
		return shape
	}
	copy(shape, disk)
	return shape
}

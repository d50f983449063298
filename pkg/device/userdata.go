package device

import "errors"

const (
	// UserDataSlots is the number of user data slots.
	UserDataSlots = 512

	// UserDataSlotSize is the capacity of one user data slot in bytes.
	UserDataSlotSize = 444
)

var (
	// ErrUserSlotWritten is returned when writing a slot that already
	// holds data.
	ErrUserSlotWritten = errors.New("device: user data slot already written")

	// ErrBadUserSlot is returned for a slot index outside 0..511.
	ErrBadUserSlot = errors.New("device: user data slot index out of range")

	// ErrUserDataTooLong is returned when a write exceeds the slot size.
	ErrUserDataTooLong = errors.New("device: user data exceeds slot size")
)

type userDataSlot struct {
	free  bool
	value []byte
}

// UserData is the general purpose data partition: 512 write-once slots of
// up to 444 bytes each. A written slot must be erased before it can be
// written again.
type UserData struct {
	slots [UserDataSlots]userDataSlot
}

// NewUserData creates a partition with every slot free.
func NewUserData() *UserData {
	u := &UserData{}
	for i := range u.slots {
		u.slots[i].free = true
	}
	return u
}

func (u *UserData) slot(index int) (*userDataSlot, error) {
	if index < 0 || index >= UserDataSlots {
		return nil, ErrBadUserSlot
	}
	return &u.slots[index], nil
}

// Free reports whether the slot holds no data.
func (u *UserData) Free(index int) (bool, error) {
	s, err := u.slot(index)
	if err != nil {
		return false, err
	}
	return s.free, nil
}

// Read returns the slot contents. A free slot reads as empty.
func (u *UserData) Read(index int) ([]byte, error) {
	s, err := u.slot(index)
	if err != nil {
		return nil, err
	}
	if s.free {
		return nil, nil
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out, nil
}

// Write stores data into a free slot.
func (u *UserData) Write(index int, data []byte) error {
	s, err := u.slot(index)
	if err != nil {
		return err
	}
	if len(data) > UserDataSlotSize {
		return ErrUserDataTooLong
	}
	if !s.free {
		return ErrUserSlotWritten
	}
	s.value = make([]byte, len(data))
	copy(s.value, data)
	s.free = false
	return nil
}

// Erase frees the slot.
func (u *UserData) Erase(index int) error {
	s, err := u.slot(index)
	if err != nil {
		return err
	}
	s.value = nil
	s.free = true
	return nil
}

// Set loads slot contents without the free check. Used when restoring a
// snapshot.
func (u *UserData) Set(index int, data []byte) error {
	s, err := u.slot(index)
	if err != nil {
		return err
	}
	if len(data) > UserDataSlotSize {
		return ErrUserDataTooLong
	}
	s.value = make([]byte, len(data))
	copy(s.value, data)
	s.free = false
	return nil
}

// Written returns the indices of all non-free slots in ascending order.
func (u *UserData) Written() []int {
	var out []int
	for i := range u.slots {
		if !u.slots[i].free {
			out = append(out, i)
		}
	}
	return out
}

package bookings

import (
	"errors"

	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrAlreadyBooked   = errors.New("already booked")
	ErrEventFull       = errors.New("event full")
	ErrBookingNotFound = errors.New("booking not found")
)

func eventNotFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrEventNotFound, "event not found")
}

func alreadyBooked() error {
	return pkgerrors.Wrap(pkgerrors.CodeAlreadyBooked, ErrAlreadyBooked, "already booked")
}

func eventFull() error {
	return pkgerrors.Wrap(pkgerrors.CodeEventFull, ErrEventFull, "event is full, join the waitlist instead")
}

func bookingNotFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrBookingNotFound, "booking not found")
}

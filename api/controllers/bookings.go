package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nomasclub/nomas-backend/api/middleware"
	"github.com/nomasclub/nomas-backend/api/responses"
	"github.com/nomasclub/nomas-backend/internal/bookings"
	"github.com/nomasclub/nomas-backend/internal/payments"
	"github.com/nomasclub/nomas-backend/pkg/enums"
	pkgerrors "github.com/nomasclub/nomas-backend/pkg/errors"
	"github.com/nomasclub/nomas-backend/pkg/logger"
)

// BookingService is the admission surface used by the booking controllers.
type BookingService interface {
	RequestBooking(ctx context.Context, userID, eventID uuid.UUID) (*bookings.Result, error)
	CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (enums.BookingStatus, error)
	CancelBookingForEvent(ctx context.Context, userID, eventID uuid.UUID) (enums.BookingStatus, error)
	ListUserBookings(ctx context.Context, userID uuid.UUID) ([]bookings.BookingView, error)
}

// EventPaymentCreator starts the card payment for a paid event.
type EventPaymentCreator interface {
	CreateEventPayment(ctx context.Context, userID, eventID uuid.UUID) (*payments.EventPayment, error)
}

type bookingCreatedResponse struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	Status        enums.BookingStatus `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
}

type needsPaymentResponse struct {
	NeedsPayment    bool                `json:"needs_payment"`
	AmountCents     int64               `json:"amount_cents"`
	Currency        string              `json:"currency"`
	ClientSecret    string              `json:"client_secret"`
	PaymentIntentID string              `json:"payment_intent_id"`
	BookingID       uuid.UUID           `json:"booking_id"`
	BookingStatus   enums.BookingStatus `json:"booking_status"`
}

type cancelResponse struct {
	PreviousStatus enums.BookingStatus `json:"previous_status"`
}

type bookingListResponse struct {
	Bookings []bookings.BookingView `json:"bookings"`
}

// RequestBooking admits the member or, when the event must be paid for,
// hands back the PaymentIntent the client confirms.
func RequestBooking(svc BookingService, paymentsSvc EventPaymentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		eventID, err := uuidParam(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, eventID.String())
		}

		result, err := svc.RequestBooking(ctx, userID, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if result.Decision.Outcome != bookings.OutcomeNeedsPayment {
			responses.WriteSuccessStatus(w, http.StatusCreated, bookingCreatedResponse{
				BookingID:     result.Booking.ID,
				Status:        result.Booking.Status,
				PaymentStatus: result.Booking.PaymentStatus,
			})
			return
		}

		if paymentsSvc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		payment, err := paymentsSvc.CreateEventPayment(ctx, userID, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, needsPaymentResponse{
			NeedsPayment:    true,
			AmountCents:     payment.AmountCents,
			Currency:        payment.Currency,
			ClientSecret:    payment.ClientSecret,
			PaymentIntentID: payment.PaymentIntentID,
			BookingID:       payment.BookingID,
			BookingStatus:   payment.BookingStatus,
		})
	}
}

func CancelEventBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		eventID, err := uuidParam(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, eventID.String())
		}

		previous, err := svc.CancelBookingForEvent(ctx, userID, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{PreviousStatus: previous})
	}
}

func CancelBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		bookingID, err := uuidParam(r, "bookingId", "booking id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		previous, err := svc.CancelBooking(ctx, userID, bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelResponse{PreviousStatus: previous})
	}
}

func ListBookings(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		rows, err := svc.ListUserBookings(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookingListResponse{Bookings: rows})
	}
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

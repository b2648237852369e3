package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
)

// fakeAPI is an in-memory Order Service that accepts every update.
type fakeAPI struct {
	orders  map[string]*ord.Order
	updates []ord.UpdateOrderRequest
	forced  []bool
}

func (f *fakeAPI) Get(_ context.Context, _, id string) (*ord.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, &ord.APIError{StatusCode: 404}
	}
	return o.Clone(), nil
}

func (f *fakeAPI) List(context.Context, string, int, int) ([]ord.Order, error) {
	out := []ord.Order{}
	for _, o := range f.orders {
		out = append(out, *o.Clone())
	}
	return out, nil
}

func (f *fakeAPI) Update(_ context.Context, _, id string, in ord.UpdateOrderRequest, force bool) (*ord.Order, error) {
	f.updates = append(f.updates, in)
	f.forced = append(f.forced, force)
	o := f.orders[id]
	if in.Status != nil {
		o.Status = *in.Status
	}
	if in.Comment != nil {
		o.Comment = *in.Comment
	}
	if in.ActualDeliveryTime != nil {
		o.ActualDeliveryTime = in.ActualDeliveryTime
	}
	return o.Clone(), nil
}

func (f *fakeAPI) Delete(_ context.Context, _, id string) error {
	delete(f.orders, id)
	return nil
}

func newApp(t *testing.T) (*app, *fakeAPI, *bytes.Buffer) {
	t.Helper()
	api := &fakeAPI{orders: map[string]*ord.Order{
		"o1": {ID: "o1", UserID: "u1", RestaurantID: "r1", Status: ord.StatusPending, FinalPrice: "22.48"},
	}}
	out := &bytes.Buffer{}
	return &app{
		console: ord.NewConsole(api, logging.Discard()),
		sess:    &auth.Session{UserID: "ops", Role: auth.RoleAdmin, Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		out:     out,
	}, api, out
}

func TestConsoleList(t *testing.T) {
	a, _, out := newApp(t)
	if err := a.run(context.Background(), "list", []string{"-limit", "5"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "o1") || !strings.Contains(out.String(), "pending") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestConsoleStatus(t *testing.T) {
	a, api, _ := newApp(t)

	if err := a.run(context.Background(), "status", []string{"o1", "accepted"}); err != nil {
		t.Fatal(err)
	}
	if api.orders["o1"].Status != ord.StatusAccepted || len(api.updates) != 1 {
		t.Fatalf("status=%s updates=%d", api.orders["o1"].Status, len(api.updates))
	}

	// same status again never reaches the service
	if err := a.run(context.Background(), "status", []string{"o1", "accepted"}); err != nil {
		t.Fatal(err)
	}
	if len(api.updates) != 1 {
		t.Fatalf("updates=%d", len(api.updates))
	}

	err := a.run(context.Background(), "status", []string{"o1", "pending"})
	if !errors.Is(err, ord.ErrInvalidTransition) || !strings.Contains(err.Error(), "-force") {
		t.Fatalf("err=%v", err)
	}

	if err := a.run(context.Background(), "status", []string{"-force", "o1", "pending"}); err != nil {
		t.Fatal(err)
	}
	if !api.forced[len(api.forced)-1] {
		t.Fatal("force flag not sent")
	}
}

func TestConsoleAmendAndDelete(t *testing.T) {
	a, api, out := newApp(t)

	if err := a.run(context.Background(), "amend", []string{"o1"}); err == nil {
		t.Fatal("amend without flags should fail")
	}
	err := a.run(context.Background(), "amend", []string{"-delivered-at", "2025-03-01T13:00:00Z", "o1"})
	if !errors.Is(err, ord.ErrDeliveryTime) || len(api.updates) != 0 {
		t.Fatalf("delivery time on a pending order: err=%v updates=%d", err, len(api.updates))
	}

	api.orders["o1"].Status = ord.StatusDelivered
	if err := a.run(context.Background(), "amend", []string{"-comment", "", "-delivered-at", "2025-03-01T13:00:00Z", "o1"}); err != nil {
		t.Fatal(err)
	}
	last := api.updates[len(api.updates)-1]
	if last.Comment == nil || *last.Comment != "" || last.ActualDeliveryTime == nil {
		t.Fatalf("update=%+v", last)
	}
	if err := a.run(context.Background(), "amend", []string{"-delivered-at", "yesterday", "o1"}); err == nil {
		t.Fatal("bad time should fail")
	}

	if err := a.run(context.Background(), "delete", []string{"o1"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := api.orders["o1"]; ok || !strings.Contains(out.String(), "deleted o1") {
		t.Fatalf("order still present or no confirmation: %q", out.String())
	}
}

func TestConsoleUsage(t *testing.T) {
	a, _, _ := newApp(t)
	if err := a.run(context.Background(), "explode", nil); !errors.Is(err, errUsage) {
		t.Fatalf("err=%v", err)
	}
	if err := a.run(context.Background(), "show", nil); !errors.Is(err, errUsage) {
		t.Fatalf("err=%v", err)
	}
}

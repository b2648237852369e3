// Package cart is the buyer's basket: an in-memory set of lines unique by
// product id, written through to local storage on every mutation.
package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ordenes-restaurante/internal/money"
	"github.com/MikeMC777/ordenes-restaurante/internal/product"
)

const (
	StorageKey    = "cart"
	SchemaVersion = 1
)

// Line is one (product, quantity) pairing. Quantity is always >= 1.
type Line struct {
	ProductID    string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Image        string `json:"image,omitempty"`
	Quantity     int    `json:"quantity"`
}

// envelope is the persisted shape. Version 0 is the legacy bare array.
type envelope struct {
	Version int        `json:"version"`
	Lines   []wireLine `json:"lines"`
}

// wireLine accepts the price as a JSON string or number.
type wireLine struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	Quantity     int             `json:"quantity"`
}

// Store serializes every mutation behind one mutex, so there is a single
// dispatch path per session.
type Store struct {
	mu      sync.Mutex
	storage Storage
	logger  *slog.Logger
	lines   []Line
}

// Open rehydrates the cart from storage. Missing, corrupt or unknown data
// yields an empty cart.
func Open(storage Storage, logger *slog.Logger) *Store {
	s := &Store{storage: storage, logger: logger}
	s.lines = s.load()
	return s
}

func (s *Store) load() []Line {
	raw, err := s.storage.Get(StorageKey)
	if errors.Is(err, ErrNoValue) {
		return nil
	}
	if err != nil {
		s.logger.Warn("cart storage read failed, starting empty", "error", err)
		return nil
	}
	lines, err := decode(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable cart", "error", err)
		return nil
	}
	return lines
}

var errUnknownVersion = errors.New("unknown cart schema version")

func decode(raw []byte) ([]Line, error) {
	var wire []wireLine
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Version != SchemaVersion {
			return nil, errUnknownVersion
		}
		wire = env.Lines
	} else if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return normalize(wire), nil
}

// normalize drops invalid lines and merges duplicates, keeping first-seen order.
func normalize(wire []wireLine) []Line {
	var out []Line
	index := make(map[string]int)
	for _, w := range wire {
		if w.ID == "" || w.Quantity < 1 || w.Price.IsNegative() {
			continue
		}
		if i, ok := index[w.ID]; ok {
			out[i].Quantity += w.Quantity
			continue
		}
		index[w.ID] = len(out)
		out = append(out, Line{
			ProductID:    w.ID,
			RestaurantID: w.RestaurantID,
			Name:         w.Name,
			Price:        money.Format(w.Price),
			Image:        w.Image,
			Quantity:     w.Quantity,
		})
	}
	return out
}

func encode(lines []Line) ([]byte, error) {
	env := envelope{Version: SchemaVersion, Lines: make([]wireLine, 0, len(lines))}
	for _, l := range lines {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			price = decimal.Zero
		}
		env.Lines = append(env.Lines, wireLine{
			ID:           l.ProductID,
			RestaurantID: l.RestaurantID,
			Name:         l.Name,
			Price:        price,
			Image:        l.Image,
			Quantity:     l.Quantity,
		})
	}
	return json.Marshal(env)
}

// persist must be called with mu held. Failures keep the in-memory cart.
func (s *Store) persist() {
	b, err := encode(s.lines)
	if err != nil {
		s.logger.Warn("cart encode failed", "error", err)
		return
	}
	if err := s.storage.Set(StorageKey, b); err != nil {
		s.logger.Warn("cart persist failed", "error", err)
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

// Add inserts p with quantity 1, or increments the existing line.
func (s *Store) Add(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(p.ID); i >= 0 {
		s.lines[i].Quantity++
	} else {
		s.lines = append(s.lines, Line{
			ProductID:    p.ID,
			RestaurantID: p.RestaurantID,
			Name:         p.Name,
			Price:        p.Price,
			Image:        p.Image,
			Quantity:     1,
		})
	}
	s.persist()
}

func (s *Store) Increment(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines[i].Quantity++
	s.persist()
}

// Decrement removes the line instead of keeping a zero quantity.
func (s *Store) Decrement(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines[i].Quantity--
	if s.lines[i].Quantity < 1 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
	s.persist()
}

func (s *Store) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.persist()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.persist()
}

// Subtract takes the given quantities out of the cart, dropping lines that
// reach zero. Lines added after the snapshot was taken are kept.
func (s *Store) Subtract(ordered []Line) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		i := s.indexOf(o.ProductID)
		if i < 0 {
			continue
		}
		s.lines[i].Quantity -= o.Quantity
		if s.lines[i].Quantity < 1 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
	}
	s.persist()
}

// Lines returns a copy in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Quantity is 0 for products not in the cart.
func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(productID); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// Subtotal sums unit price × quantity. Lines with an unreadable price count as zero.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, l := range s.lines {
		unit, err := money.Parse(l.Price)
		if err != nil {
			continue
		}
		total = total.Add(money.LineTotal(unit, l.Quantity))
	}
	return total
}

// RestaurantIDs returns the distinct restaurant ids, sorted.
func (s *Store) RestaurantIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RestaurantIDs(s.lines)
}

func RestaurantIDs(lines []Line) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lines {
		if _, ok := seen[l.RestaurantID]; ok {
			continue
		}
		seen[l.RestaurantID] = struct{}{}
		out = append(out, l.RestaurantID)
	}
	sort.Strings(out)
	return out
}

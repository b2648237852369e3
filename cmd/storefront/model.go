package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/cart"
	"github.com/MikeMC777/ordenes-restaurante/internal/money"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
	prod "github.com/MikeMC777/ordenes-restaurante/internal/product"
)

type Catalog interface {
	List(ctx context.Context, q prod.Query) ([]prod.Product, error)
}

type pane int

const (
	paneCatalog pane = iota
	paneCart
)

type catalogLoaded struct {
	items []prod.Product
	err   error
}

type orderPlaced struct {
	order *ord.Order
	err   error
}

type model struct {
	catalog  Catalog
	query    prod.Query
	cart     *cart.Store
	composer *ord.Composer
	session  *auth.Session
	input    ord.Input
	timeout  time.Duration

	products []prod.Product
	focus    pane
	cursor   int
	cartPos  int
	status   string
	busy     bool
	placed   *ord.Order
}

func (m model) Init() tea.Cmd {
	return m.loadCatalog()
}

func (m model) loadCatalog() tea.Cmd {
	catalog, q, timeout := m.catalog, m.query, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := catalog.List(ctx, q)
		return catalogLoaded{items: items, err: err}
	}
}

func (m model) placeOrder() tea.Cmd {
	composer, sess, in, timeout := m.composer, m.session, m.input, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		o, err := composer.Place(ctx, sess, in)
		return orderPlaced{order: o, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case catalogLoaded:
		if msg.err != nil {
			m.status = fmt.Sprintf("Catalog unavailable: %v", msg.err)
			return m, nil
		}
		m.products = msg.items
		m.cursor = 0
		m.status = fmt.Sprintf("%d menu items", len(msg.items))
	case orderPlaced:
		m.busy = false
		if msg.err != nil {
			m.status = placeError(msg.err)
			return m, nil
		}
		m.placed = msg.order
		m.cartPos = 0
		m.status = fmt.Sprintf("Order %s placed (%s, %s)", msg.order.ID, msg.order.Status, msg.order.FinalPrice)
	}
	return m, nil
}

// cartKeys edit the cart and are ignored while an order is being placed.
var cartKeys = map[string]bool{"enter": true, "a": true, "+": true, "-": true, "x": true, "c": true}

func (m model) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.busy && cartKeys[key] {
		m.status = "Cart is locked while the order is being placed"
		return m, nil
	}
	lines := m.cart.Lines()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.focus == paneCatalog {
			m.focus = paneCart
		} else {
			m.focus = paneCatalog
		}
	case "up", "k":
		if m.focus == paneCatalog && m.cursor > 0 {
			m.cursor--
		}
		if m.focus == paneCart && m.cartPos > 0 {
			m.cartPos--
		}
	case "down", "j":
		if m.focus == paneCatalog && m.cursor < len(m.products)-1 {
			m.cursor++
		}
		if m.focus == paneCart && m.cartPos < len(lines)-1 {
			m.cartPos++
		}
	case "enter", "a":
		if m.focus == paneCatalog && m.cursor < len(m.products) {
			p := m.products[m.cursor]
			m.cart.Add(p)
			m.status = fmt.Sprintf("Added %s", p.Name)
		}
	case "+":
		if id, ok := m.selectedLine(lines); ok {
			m.cart.Increment(id)
		}
	case "-":
		if id, ok := m.selectedLine(lines); ok {
			m.cart.Decrement(id)
		}
	case "x":
		if id, ok := m.selectedLine(lines); ok {
			m.cart.Remove(id)
		}
	case "c":
		m.cart.Clear()
		m.status = "Cart cleared"
	case "r":
		return m, m.loadCatalog()
	case "p":
		if m.busy {
			m.status = "An order is already being placed"
			return m, nil
		}
		m.busy = true
		m.status = "Placing order..."
		return m, m.placeOrder()
	}
	m.clampCartPos()
	return m, nil
}

func (m model) selectedLine(lines []cart.Line) (string, bool) {
	if m.focus != paneCart || m.cartPos >= len(lines) {
		return "", false
	}
	return lines[m.cartPos].ProductID, true
}

func (m *model) clampCartPos() {
	if n := m.cart.Len(); m.cartPos >= n {
		m.cartPos = max(n-1, 0)
	}
}

func placeError(err error) string {
	switch {
	case errors.Is(err, ord.ErrNotAuthenticated):
		return "Sign in first (AUTH_TOKEN is missing or expired)"
	case errors.Is(err, ord.ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, ord.ErrMixedRestaurants):
		return "Your cart has dishes from more than one restaurant"
	case errors.Is(err, ord.ErrNoRestaurant):
		return "Some cart items were saved without a restaurant, remove and re-add them"
	case errors.Is(err, ord.ErrNoDeliveryAddress):
		return "Choose a delivery address (-address)"
	case errors.Is(err, ord.ErrRateLimited):
		return "Too many requests, try again shortly"
	case errors.Is(err, ord.ErrSubmissionInFlight):
		return "An order is already being placed"
	default:
		return fmt.Sprintf("Order failed, your cart was kept: %v", err)
	}
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "ordenes-restaurante storefront")
	fmt.Fprintln(b, "")

	fmt.Fprintln(b, "Menu:")
	for i, p := range m.products {
		marker := " "
		if m.focus == paneCatalog && i == m.cursor {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-28s %8s  [%s]\n", marker, p.Name, p.Price, p.RestaurantID)
	}

	fmt.Fprintln(b, "")
	fmt.Fprintln(b, "Cart:")
	lines := m.cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(b, "   (empty)")
	}
	for i, l := range lines {
		marker := " "
		if m.focus == paneCart && i == m.cartPos {
			marker = ">"
		}
		unit, _ := money.Parse(l.Price)
		fmt.Fprintf(b, " %s %-28s x%-3d %8s\n", marker, l.Name, l.Quantity, money.Format(money.LineTotal(unit, l.Quantity)))
	}
	fmt.Fprintf(b, "   Subtotal: %s\n", money.Format(m.cart.Subtotal()))

	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	if m.placed != nil {
		fmt.Fprintf(b, "Last order: %s (%s)\n", m.placed.ID, m.placed.Status)
	}
	fmt.Fprintln(b, "\nControls: tab switch pane, up/down move, enter add, +/- quantity, x remove, c clear, p place, r reload, q quit")
	return b.String()
}

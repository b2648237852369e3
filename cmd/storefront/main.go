package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MikeMC777/ordenes-restaurante/internal/auth"
	"github.com/MikeMC777/ordenes-restaurante/internal/cart"
	"github.com/MikeMC777/ordenes-restaurante/internal/config"
	"github.com/MikeMC777/ordenes-restaurante/internal/logging"
	ord "github.com/MikeMC777/ordenes-restaurante/internal/order"
	prod "github.com/MikeMC777/ordenes-restaurante/internal/product"
)

func main() {
	address := flag.String("address", "", "delivery address id")
	restaurant := flag.String("restaurant", "", "only show this restaurant's menu")
	search := flag.String("q", "", "search the menu (at least 2 characters)")
	comment := flag.String("comment", "", "order comment")
	discount := flag.String("discount", "", "flat discount, e.g. 2.00")
	flag.Parse()

	cfg := config.Load()
	logger, closeLog := fileLogger(cfg)
	defer closeLog()

	storage, err := cart.NewFileStorage(cfg.CartDir)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	store := cart.Open(storage, logger)

	// a missing or unreadable token leaves the session empty; placing an order then fails with a sign-in message
	sess, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		logger.Warn("no usable session", "error", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	orders := ord.NewClient(cfg.OrderSvcBaseURL, httpClient)

	m := model{
		catalog:  prod.NewClient(cfg.ProductSvcBaseURL, httpClient),
		query:    prod.Query{Q: *search, RestaurantID: *restaurant},
		cart:     store,
		composer: ord.NewComposer(store, orders, logger),
		session:  sess,
		input:    ord.Input{DeliveryAddressID: *address, Comment: *comment, Discount: *discount},
		timeout:  cfg.HTTPTimeout,
		status:   "Loading menu...",
	}

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

// fileLogger keeps logs off the terminal, which the UI owns.
func fileLogger(cfg config.Config) (*slog.Logger, func()) {
	if err := os.MkdirAll(cfg.CartDir, 0o755); err != nil {
		return logging.Discard(), func() {}
	}
	f, err := os.OpenFile(filepath.Join(cfg.CartDir, "storefront.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return logging.Discard(), func() {}
	}
	return logging.NewWithWriter(f, "storefront", cfg.LogLevel), func() { _ = f.Close() }
}

// Package types defines the backend store records and inbox messages the
// order-intake tools work with.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Price decodes from either a JSON number or a decimal string, since the
// backend serialises DECIMAL columns as strings.
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*p = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", s, err)
		}
		*p = Price(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Price(f)
	return nil
}

// Product is a catalogue entry.
type Product struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       Price      `json:"price"`
	Stock       int        `json:"stock"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// ProductInput is the body of product create/update requests. Nil fields are
// left unchanged on update.
type ProductInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

// Customer is a customer record.
type Customer struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	Orders    []Order    `json:"orders,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CustomerInput is the body of a customer create request.
type CustomerInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        int64    `json:"id"`
	OrderID   int64    `json:"orderId"`
	ProductID int64    `json:"productId"`
	Quantity  int      `json:"quantity"`
	Price     Price    `json:"price"`
	Product   *Product `json:"product,omitempty"`
}

// Order is a placed order.
type Order struct {
	ID          int64       `json:"id"`
	CustomerID  int64       `json:"customerId"`
	TotalAmount Price       `json:"totalAmount"`
	Status      string      `json:"status,omitempty"`
	Customer    *Customer   `json:"customer,omitempty"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
}

// Email is one unread inbox message.
type Email struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Subject   string `json:"subject"`
	FromEmail string `json:"from_email"`
	Body      string `json:"body"`
	Snippet   string `json:"snippet"`
}

// Query formats the email as the agent query for one order-intake run.
func (e Email) Query() string {
	return fmt.Sprintf("From: %s\nSubject: %s\n\n%s", e.FromEmail, e.Subject, e.Body)
}

// SendResult is the outcome of an outbound email.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
}

// AgentState represents the current state of an interactive session.
type AgentState int

const (
	StateIdle AgentState = iota
	StateThinking
	StateToolExecuting
	StateResponding
	StateError
)

// String returns a human-readable state name.
func (s AgentState) String() string {
	names := [...]string{
		"Idle",
		"Thinking",
		"Executing tool",
		"Responding",
		"Error",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

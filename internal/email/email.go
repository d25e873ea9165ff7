package email

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kisanmarket/kisan-golang/internal/models"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender is the placeholder sender. Instead of calling a mail API it
// prints the message so it can be seen during local runs.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Println("====================================================")
	log.Printf("--- NEW EMAIL (PLACEHOLDER) ---")
	log.Printf("To: %s", to)
	log.Printf("Subject: %s", subject)
	log.Println("--- Body ---")
	log.Println(body)
	log.Println("====================================================")
	return nil
}

// ConfirmationNotifier mails the shopper when an order is paid.
type ConfirmationNotifier struct {
	sender     Sender
	guestEmail string
}

// NewConfirmationNotifier skips orders placed under guestEmail, since
// nobody reads that mailbox.
func NewConfirmationNotifier(sender Sender, guestEmail string) *ConfirmationNotifier {
	return &ConfirmationNotifier{sender: sender, guestEmail: guestEmail}
}

// OrderSettled implements checkout.SettlementListener.
func (n *ConfirmationNotifier) OrderSettled(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderStatusPaid {
		return nil
	}
	if order.CustomerEmail == "" || strings.EqualFold(order.CustomerEmail, n.guestEmail) {
		return nil
	}

	subject := fmt.Sprintf("Your Kisan Marketplace order %s is confirmed", shortID(order.ID))
	if err := n.sender.Send(ctx, order.CustomerEmail, subject, confirmationBody(order)); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", order.ID, err)
	}
	return nil
}

func confirmationBody(order *models.Order) string {
	var b strings.Builder
	b.WriteString("Thank you for shopping with Kisan Marketplace!\n\n")
	fmt.Fprintf(&b, "Order: %s\n\n", order.ID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %s x %d %s from %s (%s): %s\n",
			item.ProductName, item.Quantity, item.Unit, item.FarmerName, item.FarmerLocation,
			item.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal paid: %s %s\n", strings.ToUpper(order.Currency), order.TotalAmount.StringFixed(2))
	if a := order.DeliveryAddress; a != nil {
		fmt.Fprintf(&b, "\nDelivering to: %s, %s, %s %s\n", a.Street, a.City, a.State, a.Pincode)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

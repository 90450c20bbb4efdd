package handler

// Handlers groups every HTTP handler for router setup.
type Handlers struct {
	Health       *HealthHandler
	Listing      *ListingHandler
	Chat         *ChatHandler
	Offer        *OfferHandler
	Transaction  *TransactionHandler
	Notification *NotificationHandler
	MarketPrice  *MarketPriceHandler
	User         *UserHandler
	WebSocket    *WebSocketHandler
}

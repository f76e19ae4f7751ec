// Package api defines the request and response messages of the grouporder
// services. Field names follow the protojson convention (lowerCamelCase).
package api

type ProductRef struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type Product struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Favorite bool   `json:"favorite,omitempty"`
}

type Participant struct {
	Identity    string        `json:"identity"`
	DisplayName string        `json:"displayName"`
	Products    []*ProductRef `json:"products"`
	Version     int64         `json:"version,omitempty"`
}

type Order struct {
	Id           string         `json:"id"`
	Name         string         `json:"name"`
	CreatedAt    int64          `json:"createdAt"` // Unix seconds
	CreatedBy    string         `json:"createdBy,omitempty"`
	Participants []*Participant `json:"participants"`
}

type SummaryLine struct {
	Category     string   `json:"category"`
	ProductId    string   `json:"productId"`
	Name         string   `json:"name"`
	Count        int32    `json:"count"`
	Contributors []string `json:"contributors"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Count    int32  `json:"count"`
	Products int32  `json:"products"`
}

type ParticipantTotal struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Count       int32  `json:"count"`
}

type Summary struct {
	Lines        []*SummaryLine      `json:"lines"`
	Categories   []*CategoryTotal    `json:"categories"`
	Participants []*ParticipantTotal `json:"participants"`
	Total        int32               `json:"total"`
}

type CreateOrderRequest struct {
	Name string `json:"name"`
	// Join adds the creator as the first participant.
	Join bool `json:"join,omitempty"`
}

type CreateOrderResponse struct {
	Order *Order `json:"order"`
}

type GetOrderRequest struct {
	OrderId string `json:"orderId"`
}

type GetOrderResponse struct {
	Order   *Order   `json:"order"`
	Summary *Summary `json:"summary"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
}

type DeleteOrderRequest struct {
	OrderId string `json:"orderId"`
}

type DeleteOrderResponse struct{}

type OpenOrderRequest struct {
	OrderId string `json:"orderId"`
}

// OrderEvent is pushed on an open order stream. The first event carries
// the session ID used by ToggleProduct and LeaveOrder. The stream ends
// after an event with Gone set.
type OrderEvent struct {
	SessionId string        `json:"sessionId"`
	Order     *Order        `json:"order,omitempty"`
	Selection []*ProductRef `json:"selection"`
	Summary   *Summary      `json:"summary,omitempty"`
	Gone      bool          `json:"gone,omitempty"`
}

type ToggleProductRequest struct {
	SessionId string `json:"sessionId"`
	ProductId string `json:"productId"`
}

type ToggleProductResponse struct {
	Selection []*ProductRef `json:"selection"`
}

type LeaveOrderRequest struct {
	SessionId string `json:"sessionId"`
}

type LeaveOrderResponse struct{}

type ListProductsRequest struct {
	// Category filters by product category; empty lists every product.
	Category      string `json:"category,omitempty"`
	FavoritesOnly bool   `json:"favoritesOnly,omitempty"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type ToggleFavoriteRequest struct {
	ProductId string `json:"productId"`
}

type ToggleFavoriteResponse struct {
	Favorite bool `json:"favorite"`
}

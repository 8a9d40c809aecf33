package offers

// Product is the payload registered with the catalog service.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RegistrationResult is returned by a successful product registration.
type RegistrationResult struct {
	ID string `json:"id"`
}

// Offer is a single priced offer for a registered product.
type Offer struct {
	ID           string `json:"id"`
	Price        int    `json:"price"`
	Availability bool   `json:"availability"`
}

// authResponse is the body of a successful token exchange.
type authResponse struct {
	AccessToken string `json:"access_token"`
}

// validationError is the 422 body shape returned by the upstream service.
type validationError struct {
	Detail interface{} `json:"detail"`
}

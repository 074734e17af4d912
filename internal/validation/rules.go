// Package validation holds the pure, synchronous field validators consulted by
// the checkout wizard. Validators never fail hard; they return a field->message
// map and an empty map means the section is valid.
package validation

import (
	"regexp"
	"strings"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern  = regexp.MustCompile(`^(\+\d{1,3})?\s?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}$`)
	zipPattern    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

// Field keys reported by the section validators.
const (
	FieldFirstName  = "firstName"
	FieldLastName   = "lastName"
	FieldAddress1   = "address1"
	FieldCity       = "city"
	FieldState      = "state"
	FieldPostalCode = "postalCode"
	FieldCountry    = "country"
	FieldPhone      = "phone"
	FieldEmail      = "email"
	FieldCardNumber = "cardNumber"
	FieldCardHolder = "cardHolder"
	FieldExpiryDate = "expiryDate"
	FieldCVV        = "cvv"
)

// ShippingAddressInput is the subset of address fields the shipping validator
// inspects.
type ShippingAddressInput struct {
	FirstName  string
	LastName   string
	Address1   string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	Email      string
}

// ValidateShippingAddress checks the shipping section. Postal code and phone
// use US-centric patterns regardless of country, matching the storefront's
// observed behaviour.
func ValidateShippingAddress(addr ShippingAddressInput) map[string]string {
	errs := map[string]string{}

	if strings.TrimSpace(addr.FirstName) == "" {
		errs[FieldFirstName] = "First name is required"
	}
	if strings.TrimSpace(addr.LastName) == "" {
		errs[FieldLastName] = "Last name is required"
	}
	if strings.TrimSpace(addr.Address1) == "" {
		errs[FieldAddress1] = "Address is required"
	}
	if strings.TrimSpace(addr.City) == "" {
		errs[FieldCity] = "City is required"
	}
	if strings.TrimSpace(addr.State) == "" {
		errs[FieldState] = "State is required"
	}
	switch zip := strings.TrimSpace(addr.PostalCode); {
	case zip == "":
		errs[FieldPostalCode] = "ZIP code is required"
	case !zipPattern.MatchString(zip):
		errs[FieldPostalCode] = "Invalid ZIP code format"
	}
	if strings.TrimSpace(addr.Country) == "" {
		errs[FieldCountry] = "Country is required"
	}
	switch phone := strings.TrimSpace(addr.Phone); {
	case phone == "":
		errs[FieldPhone] = "Phone number is required"
	case !phonePattern.MatchString(phone):
		errs[FieldPhone] = "Invalid phone number format"
	}
	switch email := strings.TrimSpace(addr.Email); {
	case email == "":
		errs[FieldEmail] = "Email is required"
	case !emailPattern.MatchString(email):
		errs[FieldEmail] = "Invalid email format"
	}

	return errs
}

// CardInput carries the raw credit card form values.
type CardInput struct {
	CardNumber string
	CardHolder string
	ExpiryDate string
	CVV        string
}

// ValidateCard checks credit card details. The card number is compared against
// a strict 16-digit shape after stripping whitespace; Luhn checking is left to
// the advisory ValidLuhn helper.
func ValidateCard(card CardInput) map[string]string {
	errs := map[string]string{}

	number := strings.ReplaceAll(strings.TrimSpace(card.CardNumber), " ", "")
	switch {
	case number == "":
		errs[FieldCardNumber] = "Card number is required"
	case len(number) != 16 || !digitsPattern.MatchString(number):
		errs[FieldCardNumber] = "Invalid card number format"
	}

	if strings.TrimSpace(card.CardHolder) == "" {
		errs[FieldCardHolder] = "Cardholder name is required"
	}

	switch expiry := strings.TrimSpace(card.ExpiryDate); {
	case expiry == "":
		errs[FieldExpiryDate] = "Expiration date is required"
	case !expiryPattern.MatchString(expiry):
		errs[FieldExpiryDate] = "Invalid expiration date format (MM/YY)"
	}

	switch cvv := strings.TrimSpace(card.CVV); {
	case cvv == "":
		errs[FieldCVV] = "CVV is required"
	case !cvvPattern.MatchString(cvv):
		errs[FieldCVV] = "Invalid CVV format"
	}

	return errs
}

// ValidLuhn reports whether the card number passes the Luhn checksum after
// stripping spaces. Advisory only; the section validator does not require it.
func ValidLuhn(cardNumber string) bool {
	number := strings.ReplaceAll(strings.TrimSpace(cardNumber), " ", "")
	if number == "" || !digitsPattern.MatchString(number) {
		return false
	}

	var sum int
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

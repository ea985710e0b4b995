package chatbot

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Param describes one function argument for the model.
type Param struct {
	Name        string
	Type        string // string|number|integer|boolean
	Format      string
	Description string
	Required    bool
}

// FunctionSpec is what the model sees of a function.
type FunctionSpec struct {
	Name        string
	Description string
	Params      []Param
}

// Function is a tool the model may call.
type Function struct {
	Spec FunctionSpec
	Run  func(ctx context.Context, args map[string]interface{}) (string, error)
}

// FunctionSet is a closed set of functions keyed by name.
type FunctionSet struct {
	byName map[string]Function
}

func NewFunctionSet(fns ...Function) *FunctionSet {
	s := &FunctionSet{byName: make(map[string]Function, len(fns))}
	for _, fn := range fns {
		s.byName[fn.Spec.Name] = fn
	}
	return s
}

// Specs returns function specs sorted by name.
func (s *FunctionSet) Specs() []FunctionSpec {
	if s == nil {
		return nil
	}
	specs := make([]FunctionSpec, 0, len(s.byName))
	for _, fn := range s.byName {
		specs = append(specs, fn.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute runs name and always returns text for the model, including for
// unknown functions and failures.
func (s *FunctionSet) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	if s == nil {
		return fmt.Sprintf("Function '%s' not found.", name)
	}
	fn, ok := s.byName[name]
	if !ok {
		return fmt.Sprintf("Function '%s' not found.", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	out, err := fn.Run(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error executing function '%s': %v", name, err)
	}
	return out
}

const planPrices = `Service Plans and Pricing

- Basic Plan: Includes core messaging features
- Professional Plan: Advanced features and higher limits
- Enterprise Plan: Unlimited features and priority support

Please contact us for detailed pricing information.`

// SalesFunctions returns the sales persona's tools. now supplies the clock.
func SalesFunctions(now func() time.Time) *FunctionSet {
	dateParam := []Param{{
		Name:        "date",
		Type:        "string",
		Format:      "date-time",
		Description: "Date of the meeting",
		Required:    true,
	}}

	return NewFunctionSet(
		Function{
			Spec: FunctionSpec{Name: "getPlanPrices", Description: "Get available plans and prices information"},
			Run: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return planPrices, nil
			},
		},
		Function{
			Spec: FunctionSpec{Name: "loadUserInformation", Description: "Find user name and email from the CRM"},
			Run: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return "I am sorry, I am not able to access the CRM at the moment. Please try again later.", nil
			},
		},
		Function{
			Spec: FunctionSpec{
				Name:        "verifyMeetingAvailability",
				Description: "Verify if a given date and time is available for a meeting before booking it",
				Params:      dateParam,
			},
			Run: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return meetingAvailability(args), nil
			},
		},
		Function{
			Spec: FunctionSpec{
				Name:        "bookSalesMeeting",
				Description: "Book a sales or demo meeting with the customer on a specific date and time",
				Params:      dateParam,
			},
			Run: func(ctx context.Context, args map[string]interface{}) (string, error) {
				if availability := meetingAvailability(args); availability != "Available" {
					return availability, nil
				}
				return "Meeting booked successfully. You will receive a confirmation email shortly.", nil
			},
		},
		Function{
			Spec: FunctionSpec{Name: "currentDateAndTime", Description: "What is the current date and time"},
			Run: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return now().Format("2006-01-02 15:04:05 MST"), nil
			},
		},
	)
}

var meetingLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

// meetingAvailability allows weekdays between 9:00 and 17:59.
func meetingAvailability(args map[string]interface{}) string {
	raw, _ := args["date"].(string)
	var at time.Time
	var err error
	for _, layout := range meetingLayouts {
		if at, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return "Invalid date format provided"
	}
	if at.Weekday() == time.Saturday || at.Weekday() == time.Sunday {
		return "Not available on weekends"
	}
	if at.Hour() < 9 || at.Hour() > 17 {
		return "Not available outside business hours: 9 am to 5 pm"
	}
	return "Available"
}

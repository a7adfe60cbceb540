package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ecopickup/pooling/internal/domain"
)

// ItemClassifier describes the item shown in a photo. Implementations may
// call out to a vision model; errors are treated as the collaborator being
// unavailable.
type ItemClassifier interface {
	ClassifyItem(ctx context.Context, img domain.ItemImage) (domain.ItemDescription, error)
}

// ClassifyService validates item photos and hands them to an ItemClassifier.
type ClassifyService struct {
	classifier ItemClassifier
	timeout    time.Duration
}

// NewClassifyService constructs a ClassifyService.
func NewClassifyService(classifier ItemClassifier, timeout time.Duration) *ClassifyService {
	return &ClassifyService{classifier: classifier, timeout: timeout}
}

// Classify describes the item in body. The photo rules match request photos:
// domain.ErrValidation for an unsupported content type, an empty body or a
// body over MaxPhotoBytes. A classifier failure wraps domain.ErrUnavailable.
func (s *ClassifyService) Classify(ctx context.Context, contentType, name string, body io.Reader) (domain.ItemDescription, error) {
	mediaType, data, err := readPhoto(contentType, body)
	if err != nil {
		return domain.ItemDescription{}, fmt.Errorf("service.ClassifyService.Classify: %w", err)
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	desc, err := s.classifier.ClassifyItem(callCtx, domain.ItemImage{ContentType: mediaType, Name: name, Data: data})
	if err != nil {
		return domain.ItemDescription{}, fmt.Errorf("service.ClassifyService.Classify: %w", unavailable(err))
	}
	if desc.Category == "" {
		desc.Category = domain.CategoryOther
	}
	return desc, nil
}

// keywordRule maps a file-name keyword to a canned description.
type keywordRule struct {
	keywords []string
	desc     domain.ItemDescription
}

var keywordRules = []keywordRule{
	{
		keywords: []string{"iphone", "phone", "android"},
		desc: domain.ItemDescription{
			Item:                "Smartphone",
			Category:            domain.CategoryPhone,
			EstimatedValue:      domain.ValueRange{Min: 50, Max: 150},
			EnvironmentalImpact: "Recovers gold, silver and copper from the circuit board.",
			Hazard:              true,
			HazardDetails:       "Lithium-ion battery inside. Do not puncture.",
		},
	},
	{
		keywords: []string{"laptop", "notebook", "macbook"},
		desc: domain.ItemDescription{
			Item:                "Laptop",
			Category:            domain.CategoryLaptop,
			EstimatedValue:      domain.ValueRange{Min: 100, Max: 400},
			EnvironmentalImpact: "Keeps heavy metals out of landfill and recovers aluminium.",
			Hazard:              true,
			HazardDetails:       "Battery pack and screen backlight need separate handling.",
		},
	},
	{
		keywords: []string{"battery", "powerbank"},
		desc: domain.ItemDescription{
			Item:                "Battery",
			Category:            domain.CategoryBattery,
			EstimatedValue:      domain.ValueRange{Min: 1, Max: 10},
			EnvironmentalImpact: "Prevents acid and metal leaching into soil.",
			Hazard:              true,
			HazardDetails:       "Fire risk when damaged. Tape the terminals.",
		},
	},
	{
		keywords: []string{"appliance", "microwave", "kettle", "toaster", "fan"},
		desc: domain.ItemDescription{
			Item:                "Small appliance",
			Category:            domain.CategoryAppliance,
			EstimatedValue:      domain.ValueRange{Min: 10, Max: 60},
			EnvironmentalImpact: "Recovers copper wiring and steel.",
		},
	},
}

var otherItem = domain.ItemDescription{
	Item:                "Electronic device",
	Category:            domain.CategoryOther,
	EstimatedValue:      domain.ValueRange{Min: 5, Max: 50},
	EnvironmentalImpact: "Diverts mixed electronics from landfill.",
}

// KeywordClassifier guesses the item from keywords in the photo's file name.
// It is the fallback when no vision model is configured.
type KeywordClassifier struct{}

// ClassifyItem implements ItemClassifier.
func (KeywordClassifier) ClassifyItem(_ context.Context, img domain.ItemImage) (domain.ItemDescription, error) {
	name := strings.ToLower(img.Name)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.desc, nil
			}
		}
	}
	return otherItem, nil
}

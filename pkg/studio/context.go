package studio

import (
	"context"
	"encoding/json"
	"fmt"
)

// BuildContext assembles the template context for an application node: the
// application's name and description, the project glossary, and every page
// with its function nodes and their document content. Slices are always
// non-nil so the JSON shape stays stable, "terms": [] rather than null.
func (s *Store) BuildContext(ctx context.Context, applicationNodeID string) (*TemplateContext, error) {
	app, err := s.GetNode(ctx, applicationNodeID)
	if err != nil {
		return nil, err
	}
	if app.Type != NodeTypeApplication {
		return nil, fmt.Errorf("%w: node %s is a %s, not an application", ErrInvalid, applicationNodeID, app.Type)
	}
	if app.Status != StatusActive {
		return nil, fmt.Errorf("%w: node %s is deleted", ErrInvalid, applicationNodeID)
	}

	terms, err := s.ListTerms(ctx, app.ProjectID)
	if err != nil {
		return nil, err
	}
	contextTerms := make([]ContextTerm, 0, len(terms))
	for _, t := range terms {
		contextTerms = append(contextTerms, ContextTerm{Term: t.Term, Defination: t.Definition})
	}

	pageNodes, err := s.ListChildren(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	pages := make([]ContextPage, 0, len(pageNodes))
	for _, pageNode := range pageNodes {
		if pageNode.Type != NodeTypePage {
			continue
		}
		featureNodes, err := s.ListChildren(ctx, pageNode.ID)
		if err != nil {
			return nil, err
		}
		features := make([]ContextFeature, 0, len(featureNodes))
		for _, featureNode := range featureNodes {
			if featureNode.Type != NodeTypeFunction {
				continue
			}
			document := map[string]any{}
			if featureNode.DocumentID != 0 {
				document, err = s.GetContent(ctx, featureNode.DocumentID)
				if err != nil {
					return nil, err
				}
			}
			features = append(features, ContextFeature{
				Name:        featureNode.Name,
				Description: featureNode.Description,
				Document:    document,
			})
		}
		pages = append(pages, ContextPage{
			Name:        pageNode.Name,
			Description: pageNode.Description,
			Features:    features,
		})
	}

	return &TemplateContext{
		Application: ContextApplication{
			Name:        app.Name,
			Description: app.Description,
			Terms:       contextTerms,
			Pages:       pages,
		},
	}, nil
}

// ValidateContext checks that raw JSON matches the template context shape:
// an application object with string name and description, terms entries
// with term and defination strings, pages carrying features, and a document
// object on every feature. Extra keys are tolerated. The error names the
// location of the first mismatch.
func ValidateContext(data []byte) error {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrInvalid, err)
	}

	rootObj, ok := root.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: top level must be an object", ErrInvalid)
	}
	appVal, ok := rootObj["application"]
	if !ok {
		return fmt.Errorf(`%w: missing "application" object`, ErrInvalid)
	}
	app, ok := appVal.(map[string]any)
	if !ok {
		return fmt.Errorf(`%w: "application" must be an object`, ErrInvalid)
	}

	if err := requireString(app, "name", "application"); err != nil {
		return err
	}
	if err := requireString(app, "description", "application"); err != nil {
		return err
	}

	terms, err := requireArray(app, "terms", "application")
	if err != nil {
		return err
	}
	for i, raw := range terms {
		loc := fmt.Sprintf("application.terms[%d]", i)
		term, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s must be an object", ErrInvalid, loc)
		}
		if err = requireString(term, "term", loc); err != nil {
			return err
		}
		if err = requireString(term, "defination", loc); err != nil {
			return err
		}
	}

	pages, err := requireArray(app, "pages", "application")
	if err != nil {
		return err
	}
	for i, rawPage := range pages {
		pageLoc := fmt.Sprintf("application.pages[%d]", i)
		page, ok := rawPage.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s must be an object", ErrInvalid, pageLoc)
		}
		if err = requireString(page, "name", pageLoc); err != nil {
			return err
		}
		if err = requireString(page, "description", pageLoc); err != nil {
			return err
		}
		features, ferr := requireArray(page, "features", pageLoc)
		if ferr != nil {
			return ferr
		}
		for j, rawFeature := range features {
			featureLoc := fmt.Sprintf("%s.features[%d]", pageLoc, j)
			feature, ok := rawFeature.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s must be an object", ErrInvalid, featureLoc)
			}
			if err = requireString(feature, "name", featureLoc); err != nil {
				return err
			}
			if err = requireString(feature, "description", featureLoc); err != nil {
				return err
			}
			docVal, ok := feature["document"]
			if !ok {
				return fmt.Errorf(`%w: %s missing "document"`, ErrInvalid, featureLoc)
			}
			if _, ok = docVal.(map[string]any); !ok {
				return fmt.Errorf("%w: %s.document must be an object", ErrInvalid, featureLoc)
			}
		}
	}
	return nil
}

func requireString(obj map[string]any, key, loc string) error {
	val, ok := obj[key]
	if !ok {
		return fmt.Errorf("%w: %s missing %q", ErrInvalid, loc, key)
	}
	if _, ok = val.(string); !ok {
		return fmt.Errorf("%w: %s.%s must be a string", ErrInvalid, loc, key)
	}
	return nil
}

func requireArray(obj map[string]any, key, loc string) ([]any, error) {
	val, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing %q", ErrInvalid, loc, key)
	}
	arr, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s must be an array", ErrInvalid, loc, key)
	}
	return arr, nil
}

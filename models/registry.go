// Package models - registry for label sets.
package models

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolo/models/model"
)

// NewClassSetFor returns a fresh label set for the given family.
//
// Arguments:
//   - family: The dataset convention the model's class indices follow.
//
// Returns:
//   - *ClassSet: The label set.
//   - error: An ErrInvalidConfiguration if the family is unknown.
//
// Example:
//
// ```go
//
//	labels, err := NewClassSetFor(FamilyYOLO)
//	if err != nil {
//	    log.Fatalf("Failed to load labels: %v", err)
//	}
//	fmt.Println(labels.Name(0)) // person
//
// ```
func NewClassSetFor(family Family) (*ClassSet, error) {
	switch family {
	case FamilyYOLO, "":
		return YOLOClasses(), nil
	case FamilyCOCO:
		return COCOClasses(), nil
	case FamilyVOC:
		return PascalVOCClasses(), nil
	default:
		return nil, errors.Wrapf(model.ErrInvalidConfiguration, "unknown label family %q", family)
	}
}

// LoadClassSet reads a label list from path. The file holds a JSON or YAML list of
// names in model index order, e.g. ["person", "bicycle", ...].
//
// Arguments:
//   - path: The label file.
//
// Returns:
//   - *ClassSet: A FamilyCustom set.
//   - error: An ErrInvalidConfiguration if the file is not a non-empty list of names.
func LoadClassSet(path string) (*ClassSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read labels %s", path)
	}

	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, errors.Wrapf(model.ErrInvalidConfiguration, "labels %s are not a list of names: %v", path, err)
	}
	if len(names) == 0 {
		return nil, errors.Wrapf(model.ErrInvalidConfiguration, "labels %s are empty", path)
	}
	return NewClassSet(FamilyCustom, names...), nil
}

package models

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Unknown is the name returned for class indices outside a set.
const Unknown = "unknown"

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// ClassSet ties a family to its full list of labels.
type ClassSet struct {
	// Class set identifier.
	Family Family
	// Classes that are supported and mappable, ordered by index.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewClassSet builds a set whose indices follow the order of names.
func NewClassSet(family Family, names ...string) *ClassSet {
	s := &ClassSet{
		Family:    family,
		Classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, n := range names {
		s.Classes[i] = OutputClass{Index: i, Name: n}
		s.nameToIdx[n] = i
	}
	return s
}

// Len returns the number of classes in the set.
func (s *ClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the class name for idx, or Unknown if idx is out of range.
func (s *ClassSet) Name(idx int) string {
	if idx < 0 || idx >= len(s.Classes) {
		return Unknown
	}
	return s.Classes[idx].Name
}

// Index returns the class index for name.
//
// Arguments:
//   - name: The class name, as stored in the set.
//
// Returns:
//   - int: The index, or -1.
//   - error: An error if the name is not part of the set.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in family %q", name, s.Family)
	}
	return idx, nil
}

// LabelFunc adapts the set to the lookup used by postprocess.Label.
func (s *ClassSet) LabelFunc() postprocess.LabelFunc {
	return s.Name
}

// Check verifies that the set covers numClasses model outputs.
func (s *ClassSet) Check(numClasses int) error {
	if s.Len() != numClasses {
		return errors.Wrapf(model.ErrInvalidConfiguration,
			"family %q has %d classes, model emits %d", s.Family, s.Len(), numClasses)
	}
	return nil
}

// cocoNames is the 80 COCO class names in YOLO index order.
var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl",
	"banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza",
	"donut", "cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet",
	"tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// vocNames is the 20 Pascal VOC class names.
var vocNames = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person", "pottedplant", "sheep", "sofa",
	"train", "tvmonitor",
}

// YOLOClasses is the 80 COCO classes (no background).
// YOLO models index directly into this zero-based list.
func YOLOClasses() *ClassSet {
	return NewClassSet(FamilyYOLO, cocoNames...)
}

// COCOClasses is the 80 COCO classes plus "__background__" at index 0.
func COCOClasses() *ClassSet {
	return NewClassSet(FamilyCOCO, append([]string{"__background__"}, cocoNames...)...)
}

// PascalVOCClasses is the 20 Pascal VOC classes.
func PascalVOCClasses() *ClassSet {
	return NewClassSet(FamilyVOC, vocNames...)
}

// Package models - Label sets and display-name tables for detection outputs.
package models

// Family identifies the dataset convention a model's class indices follow.
type Family string

const (
	// FamilyYOLO is the 80 COCO classes indexed from zero with no background class.
	FamilyYOLO Family = "yolo"
	// FamilyCOCO is the 80 COCO classes plus "__background__" at index 0.
	FamilyCOCO Family = "coco"
	// FamilyVOC is the 20 Pascal VOC classes indexed from zero.
	FamilyVOC Family = "voc"
	// FamilyCustom is a label list read from a file, indexed from zero.
	FamilyCustom Family = "custom"
)

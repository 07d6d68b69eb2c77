package model

// ArchiMate 3 element types.
var elementTypes = map[string]bool{
	// Strategy
	"Resource": true, "Capability": true, "ValueStream": true, "CourseOfAction": true,
	// Business
	"BusinessActor": true, "BusinessRole": true, "BusinessCollaboration": true,
	"BusinessInterface": true, "BusinessProcess": true, "BusinessFunction": true,
	"BusinessInteraction": true, "BusinessEvent": true, "BusinessService": true,
	"BusinessObject": true, "Contract": true, "Representation": true, "Product": true,
	// Application
	"ApplicationComponent": true, "ApplicationCollaboration": true,
	"ApplicationInterface": true, "ApplicationFunction": true,
	"ApplicationInteraction": true, "ApplicationProcess": true,
	"ApplicationEvent": true, "ApplicationService": true, "DataObject": true,
	// Technology
	"Node": true, "Device": true, "SystemSoftware": true,
	"TechnologyCollaboration": true, "TechnologyInterface": true, "Path": true,
	"CommunicationNetwork": true, "TechnologyFunction": true,
	"TechnologyProcess": true, "TechnologyInteraction": true,
	"TechnologyEvent": true, "TechnologyService": true, "Artifact": true,
	// Physical
	"Equipment": true, "Facility": true, "DistributionNetwork": true, "Material": true,
	// Motivation
	"Stakeholder": true, "Driver": true, "Assessment": true, "Goal": true,
	"Outcome": true, "Principle": true, "Requirement": true, "Constraint": true,
	"Meaning": true, "Value": true,
	// Implementation & migration
	"WorkPackage": true, "Deliverable": true, "ImplementationEvent": true,
	"Plateau": true, "Gap": true,
	// Other
	"Grouping": true, "Location": true, "Junction": true,
}

// ArchiMate 3 relationship types.
var relationshipTypes = map[string]bool{
	"CompositionRelationship":    true,
	"AggregationRelationship":    true,
	"AssignmentRelationship":     true,
	"RealizationRelationship":    true,
	"ServingRelationship":        true,
	"AccessRelationship":         true,
	"InfluenceRelationship":      true,
	"TriggeringRelationship":     true,
	"FlowRelationship":           true,
	"SpecializationRelationship": true,
	"AssociationRelationship":    true,
}

// IsElementType reports whether t names a known element type.
func IsElementType(t string) bool { return elementTypes[t] }

// IsRelationshipType reports whether t names a known relationship type.
func IsRelationshipType(t string) bool { return relationshipTypes[t] }

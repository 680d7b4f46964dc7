// Package vocab contains the vocabulary constants used by the platform.
package vocab

import (
	"github.com/cayleygraph/quad/voc"
)

func init() {
	voc.RegisterPrefix(RDFPrefix, RDF)
	voc.RegisterPrefix(RDFSPrefix, RDFS)
	voc.RegisterPrefix(OWLPrefix, OWL)
	voc.RegisterPrefix(XSDPrefix, XSD)
	voc.RegisterPrefix(SWBPrefix, SWB)
}

// Namespaces and their prefixes
const (
	RDF        = `http://www.w3.org/1999/02/22-rdf-syntax-ns#`
	RDFPrefix  = `rdf:`
	RDFS       = `http://www.w3.org/2000/01/rdf-schema#`
	RDFSPrefix = `rdfs:`
	OWL        = `http://www.w3.org/2002/07/owl#`
	OWLPrefix  = `owl:`
	XSD        = `http://www.w3.org/2001/XMLSchema#`
	XSDPrefix  = `xsd:`
	SWB        = `http://www.semanticwebbuilder.org/swb4/ontology#`
	SWBPrefix  = `swb:`
)

// rdf
const (
	Type     = RDF + `type`
	Property = RDF + `Property`
	HTML     = RDF + `HTML`
)

// rdfs
const (
	Class         = RDFS + `Class`
	SubClassOf    = RDFS + `subClassOf`
	SubPropertyOf = RDFS + `subPropertyOf`
	Label         = RDFS + `label`
	Comment       = RDFS + `comment`
	Domain        = RDFS + `domain`
	Range         = RDFS + `range`
	Literal       = RDFS + `Literal`
	Resource      = RDFS + `Resource`
)

// owl
const (
	OWLClass           = OWL + `Class`
	ObjectProperty     = OWL + `ObjectProperty`
	DatatypeProperty   = OWL + `DatatypeProperty`
	FunctionalProperty = OWL + `FunctionalProperty`
	InverseOf          = OWL + `inverseOf`
	SameAs             = OWL + `sameAs`
	Thing              = OWL + `Thing`
)

// xsd
const (
	String   = XSD + `string`
	Integer  = XSD + `integer`
	Int      = XSD + `int`
	Long     = XSD + `long`
	Float    = XSD + `float`
	Double   = XSD + `double`
	Decimal  = XSD + `decimal`
	Boolean  = XSD + `boolean`
	DateTime = XSD + `dateTime`
	Date     = XSD + `date`
)

// platform
const (
	// Created and Updated are maintained on every semantic object.
	Created = SWB + `created`
	Updated = SWB + `updated`
)

// Expand expands a prefixed name such as "rdfs:label" into a full iri.
// Names without a known prefix are returned unchanged.
func Expand(name string) string {
	return voc.FullIRI(name)
}

// Compact is the inverse of Expand.
func Compact(iri string) string {
	return voc.ShortIRI(iri)
}

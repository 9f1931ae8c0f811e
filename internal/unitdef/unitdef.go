// Package unitdef parses unit-definition XML files: the declared base
// variables of a unit and the reference to its coding scheme.
package unitdef

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Variable type markers. Variables typed as carrying no codable value are
// excluded from the validity index.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNoValue = "no-value"
)

// Variable is one declared base variable of a unit.
type Variable struct {
	ID    string `xml:"id,attr"`
	Alias string `xml:"alias,attr"`
	Type  string `xml:"type,attr"`
}

// HasCodableValue reports whether the variable can carry a storable response
// value.
func (v Variable) HasCodableValue() bool {
	return !strings.EqualFold(strings.TrimSpace(v.Type), TypeNoValue)
}

// Definition is the parsed form of a unit-definition file.
type Definition struct {
	Name      string
	SchemeRef string
	Variables []Variable
}

type unitXML struct {
	XMLName  xml.Name `xml:"Unit"`
	Metadata struct {
		ID string `xml:"Id"`
	} `xml:"Metadata"`
	CodingSchemeRef string     `xml:"CodingSchemeRef"`
	BaseVariables   []Variable `xml:"BaseVariables>Variable"`
}

// Parse decodes a unit-definition XML payload.
func Parse(data []byte) (*Definition, error) {
	var doc unitXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode unit definition: %w", err)
	}
	name := strings.ToUpper(strings.TrimSpace(doc.Metadata.ID))
	if name == "" {
		return nil, fmt.Errorf("unit definition missing metadata id")
	}

	def := &Definition{
		Name:      name,
		SchemeRef: strings.TrimSpace(doc.CodingSchemeRef),
	}
	for _, variable := range doc.BaseVariables {
		variable.ID = strings.TrimSpace(variable.ID)
		variable.Alias = strings.TrimSpace(variable.Alias)
		if variable.ID == "" {
			continue
		}
		def.Variables = append(def.Variables, variable)
	}
	return def, nil
}

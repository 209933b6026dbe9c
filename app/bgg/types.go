package bgg

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Things is a parsed batch-lookup response. Repeated <item>, <name>, <link>
// and <rank> elements always unmarshal into slices, so the one-or-many shape
// of the wire format is normalized right at the boundary.
type Things struct {
	XMLName xml.Name `xml:"items"`
	Items   []Thing  `xml:"item"`
}

type Thing struct {
	ID            int         `xml:"id,attr"`
	Type          string      `xml:"type,attr"`
	Names         []Name      `xml:"name"`
	YearPublished AttrValue   `xml:"yearpublished"`
	MinPlayers    AttrValue   `xml:"minplayers"`
	MaxPlayers    AttrValue   `xml:"maxplayers"`
	PlayingTime   AttrValue   `xml:"playingtime"`
	MinAge        AttrValue   `xml:"minage"`
	Description   string      `xml:"description"`
	Links         []Link      `xml:"link"`
	Statistics    *Statistics `xml:"statistics"`
}

type Name struct {
	Type      string `xml:"type,attr"`
	SortIndex int    `xml:"sortindex,attr"`
	Value     string `xml:"value,attr"`
}

type Link struct {
	Type  string `xml:"type,attr"`
	ID    int    `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type Statistics struct {
	Ratings Ratings `xml:"ratings"`
}

type Ratings struct {
	UsersRated    AttrValue `xml:"usersrated"`
	Average       AttrValue `xml:"average"`
	BayesAverage  AttrValue `xml:"bayesaverage"`
	AverageWeight AttrValue `xml:"averageweight"`
	Ranks         []Rank    `xml:"ranks>rank"`
}

type Rank struct {
	Type         string `xml:"type,attr"`
	ID           int    `xml:"id,attr"`
	Name         string `xml:"name,attr"`
	FriendlyName string `xml:"friendlyname,attr"`
	Value        string `xml:"value,attr"`
	BayesAverage string `xml:"bayesaverage,attr"`
}

// AttrValue holds a value="..." attribute. The API leaves these empty or sets
// them to non-numeric markers ("Not Ranked"), so conversion is deferred.
type AttrValue struct {
	Value string `xml:"value,attr"`
}

func (v AttrValue) Int() *int {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func (v AttrValue) Float() *float64 {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseThings parses a batch-lookup response document
func ParseThings(data []byte) (*Things, error) {
	var things Things
	if err := xml.Unmarshal(data, &things); err != nil {
		return nil, fmt.Errorf("failed to parse things response: %w", err)
	}
	return &things, nil
}

// Payload re-marshals a single item as a standalone one-item document, the
// form stored in raw_responses and re-parsed by the processor.
func Payload(item Thing) (string, error) {
	doc := Things{Items: []Thing{item}}
	data, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload for item %d: %w", item.ID, err)
	}
	return string(data), nil
}

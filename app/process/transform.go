package process

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/edobrenko/bgg-warehouse/app/bgg"
	"github.com/edobrenko/bgg-warehouse/app/database"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var sortNameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Transform maps a parsed payload to normalized warehouse rows. A nil result
// with nil error means the payload held nothing to load for gameID.
func Transform(gameID int, things *bgg.Things, loadTimestamp time.Time) (*database.GameLoad, error) {
	var item *bgg.Thing
	for i := range things.Items {
		if things.Items[i].ID == gameID {
			item = &things.Items[i]
			break
		}
	}
	if item == nil {
		return nil, nil
	}

	name := primaryName(item.Names)
	if name == "" {
		return nil, nil
	}

	game := database.Game{
		GameID:        gameID,
		LoadTimestamp: loadTimestamp.UTC(),
		Type:          gameType(item.Type),
		Name:          name,
		SortName:      sortName(name),
		YearPublished: item.YearPublished.Int(),
		MinPlayers:    item.MinPlayers.Int(),
		MaxPlayers:    item.MaxPlayers.Int(),
		PlayingTime:   item.PlayingTime.Int(),
		MinAge:        item.MinAge.Int(),
		Description:   item.Description,
	}

	load := &database.GameLoad{Game: game}

	if item.Statistics != nil {
		ratings := item.Statistics.Ratings
		load.Game.AverageRating = ratings.Average.Float()
		load.Game.BayesAverage = ratings.BayesAverage.Float()
		load.Game.UsersRated = ratings.UsersRated.Int()
		load.Game.AverageWeight = ratings.AverageWeight.Float()

		for _, rank := range ratings.Ranks {
			load.Rankings = append(load.Rankings, database.GameRanking{
				RankType:     rank.Type,
				RankName:     rank.Name,
				RankValue:    rankValue(rank.Value),
				BayesAverage: floatOrNil(rank.BayesAverage),
			})
		}
	}

	for _, link := range item.Links {
		value := database.DimensionValue{ID: link.ID, Name: link.Value}
		switch link.Type {
		case "boardgamecategory":
			load.Categories = append(load.Categories, value)
		case "boardgamemechanic":
			load.Mechanics = append(load.Mechanics, value)
		case "boardgamedesigner":
			load.Designers = append(load.Designers, value)
		case "boardgamepublisher":
			load.Publishers = append(load.Publishers, value)
		}
	}

	return load, nil
}

// primaryName returns the primary name, falling back to the first listed
func primaryName(names []bgg.Name) string {
	for _, n := range names {
		if n.Type == "primary" && n.Value != "" {
			return n.Value
		}
	}
	if len(names) > 0 {
		return names[0].Value
	}
	return ""
}

// sortName lowercases and folds accents so "Космонавты" and "Café" sort
// predictably next to their ASCII neighbours.
func sortName(name string) string {
	folded, _, err := transform.String(sortNameFolder, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func gameType(apiType string) string {
	if apiType == "boardgameexpansion" {
		return "boardgameexpansion"
	}
	return "boardgame"
}

// rankValue parses a rank attribute, which may be "Not Ranked"
func rankValue(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func floatOrNil(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

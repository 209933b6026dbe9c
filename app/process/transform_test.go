package process

import (
	"testing"
	"time"

	"github.com/edobrenko/bgg-warehouse/app/bgg"
)

const caylusXML = `<items>
	<item type="boardgame" id="42">
		<name type="primary" sortindex="1" value="Caylus"/>
		<name type="alternate" sortindex="1" value="Кейлус"/>
		<yearpublished value="2005"/>
		<minplayers value="2"/>
		<maxplayers value="5"/>
		<playingtime value="150"/>
		<minage value="12"/>
		<description>Build along the road to the castle.</description>
		<link type="boardgamecategory" id="1029" value="City Building"/>
		<link type="boardgamemechanic" id="2082" value="Worker Placement"/>
		<link type="boardgamedesigner" id="125" value="William Attia"/>
		<link type="boardgamepublisher" id="157" value="Ystari Games"/>
		<statistics page="1">
			<ratings>
				<usersrated value="30000"/>
				<average value="7.7"/>
				<bayesaverage value="7.5"/>
				<averageweight value="3.8"/>
				<ranks>
					<rank type="subtype" id="1" name="boardgame" friendlyname="Board Game Rank" value="100" bayesaverage="7.5"/>
					<rank type="family" id="5497" name="strategygames" friendlyname="Strategy Game Rank" value="Not Ranked" bayesaverage="Not Ranked"/>
				</ranks>
			</ratings>
		</statistics>
	</item>
</items>`

func parseFixture(t *testing.T, data string) *bgg.Things {
	t.Helper()
	things, err := bgg.ParseThings([]byte(data))
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return things
}

func TestTransform(t *testing.T) {
	things := parseFixture(t, caylusXML)
	loadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	load, err := Transform(42, things, loadedAt)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if load == nil {
		t.Fatal("Expected a load, got nil")
	}

	game := load.Game
	if game.GameID != 42 {
		t.Errorf("Expected game id 42, got %d", game.GameID)
	}
	if game.Name != "Caylus" {
		t.Errorf("Expected primary name Caylus, got %q", game.Name)
	}
	if game.SortName != "caylus" {
		t.Errorf("Expected sort name caylus, got %q", game.SortName)
	}
	if game.Type != "boardgame" {
		t.Errorf("Expected type boardgame, got %q", game.Type)
	}
	if game.YearPublished == nil || *game.YearPublished != 2005 {
		t.Errorf("Expected year published 2005, got %v", game.YearPublished)
	}
	if game.MinPlayers == nil || *game.MinPlayers != 2 {
		t.Errorf("Expected min players 2, got %v", game.MinPlayers)
	}
	if game.MaxPlayers == nil || *game.MaxPlayers != 5 {
		t.Errorf("Expected max players 5, got %v", game.MaxPlayers)
	}
	if game.AverageRating == nil || *game.AverageRating != 7.7 {
		t.Errorf("Expected average rating 7.7, got %v", game.AverageRating)
	}
	if game.UsersRated == nil || *game.UsersRated != 30000 {
		t.Errorf("Expected 30000 users rated, got %v", game.UsersRated)
	}
	if !game.LoadTimestamp.Equal(loadedAt) {
		t.Errorf("Expected load timestamp %v, got %v", loadedAt, game.LoadTimestamp)
	}

	if len(load.Rankings) != 2 {
		t.Fatalf("Expected 2 rankings, got %d", len(load.Rankings))
	}
	if load.Rankings[0].RankValue == nil || *load.Rankings[0].RankValue != 100 {
		t.Errorf("Expected subtype rank 100, got %v", load.Rankings[0].RankValue)
	}
	if load.Rankings[1].RankValue != nil {
		t.Errorf("Expected nil rank for Not Ranked, got %v", load.Rankings[1].RankValue)
	}

	if len(load.Categories) != 1 || load.Categories[0].Name != "City Building" {
		t.Errorf("Unexpected categories: %v", load.Categories)
	}
	if len(load.Mechanics) != 1 || load.Mechanics[0].Name != "Worker Placement" {
		t.Errorf("Unexpected mechanics: %v", load.Mechanics)
	}
	if len(load.Designers) != 1 || load.Designers[0].ID != 125 {
		t.Errorf("Unexpected designers: %v", load.Designers)
	}
	if len(load.Publishers) != 1 || load.Publishers[0].ID != 157 {
		t.Errorf("Unexpected publishers: %v", load.Publishers)
	}
}

func TestTransformMissingItem(t *testing.T) {
	things := parseFixture(t, caylusXML)

	load, err := Transform(99, things, time.Now().UTC())
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if load != nil {
		t.Errorf("Expected nil load for an id absent from the payload, got %v", load)
	}
}

func TestTransformEmptyName(t *testing.T) {
	things := parseFixture(t, `<items><item type="boardgame" id="7"></item></items>`)

	load, err := Transform(7, things, time.Now().UTC())
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if load != nil {
		t.Errorf("Expected nil load for an item without a name, got %v", load)
	}
}

func TestTransformExpansionType(t *testing.T) {
	things := parseFixture(t, `<items><item type="boardgameexpansion" id="8">
		<name type="primary" sortindex="1" value="Seafarers"/></item></items>`)

	load, err := Transform(8, things, time.Now().UTC())
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if load == nil || load.Game.Type != "boardgameexpansion" {
		t.Errorf("Expected boardgameexpansion type, got %v", load)
	}
}

func TestSortNameFoldsAccents(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Café International", "cafe international"},
		{"Päivä", "paiva"},
		{"  Brass  ", "brass"},
		{"7 Wonders", "7 wonders"},
	}

	for _, tt := range tests {
		if got := sortName(tt.in); got != tt.expected {
			t.Errorf("sortName(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

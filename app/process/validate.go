package process

import (
	"fmt"

	"github.com/edobrenko/bgg-warehouse/app/database"
)

// ValidateLoads checks an accumulated batch before it is handed to the bulk
// loader. Validation fails closed: one bad load aborts the whole batch so no
// success lifecycle records get written for it.
func ValidateLoads(loads []*database.GameLoad) error {
	for i, load := range loads {
		if load == nil {
			return fmt.Errorf("load %d is nil", i)
		}
		if load.RecordID == "" {
			return fmt.Errorf("load %d (game %d) has no record id", i, load.Game.GameID)
		}
		if load.Game.GameID <= 0 {
			return fmt.Errorf("load %d has invalid game id %d", i, load.Game.GameID)
		}
		if load.Game.Name == "" {
			return fmt.Errorf("load %d (game %d) has an empty name", i, load.Game.GameID)
		}
		if load.Game.LoadTimestamp.IsZero() {
			return fmt.Errorf("load %d (game %d) has no load timestamp", i, load.Game.GameID)
		}
	}
	return nil
}

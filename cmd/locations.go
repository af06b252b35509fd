package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamo/photoframe/internal/geocode"
)

var clearLocations bool

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List or clear cached place names",
	Long: `Shows the reverse-geocoding cache used for slide captions. Coordinates are
rounded to four decimals; entries without a place are remembered misses and
are not looked up again until the cache is cleared.`,
	RunE: runLocations,
}

func init() {
	rootCmd.AddCommand(locationsCmd)

	locationsCmd.Flags().BoolVar(&clearLocations, "clear", false, "Delete every cached entry")
}

func runLocations(cmd *cobra.Command, args []string) error {
	cache := geocode.NewCache(paths.LocationCacheFile(), nil, logger)

	if clearLocations {
		n := cache.Len()
		if err := cache.Clear(); err != nil {
			return fmt.Errorf("failed to clear location cache: %w", err)
		}
		fmt.Printf("Removed %d cached locations\n", n)
		return nil
	}

	entries := cache.Entries()
	if len(entries) == 0 {
		fmt.Println("Location cache is empty")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	misses := 0
	for _, e := range entries {
		place := e.Place
		if !e.Found {
			place = "(none)"
			misses++
		}
		rows = append(rows, []string{e.Key, place})
	}
	fmt.Println(renderTable([]string{"Coordinate", "Place"}, rows, nil))
	fmt.Printf("%d entries, %d without a place\n", len(entries), misses)
	return nil
}

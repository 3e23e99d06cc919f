package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"orbitcam/internal/geocode"
	"orbitcam/internal/geotag"
)

func newLocateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate LAT LON",
		Short: "Resolve a coordinate pair against the offline index",
		Example: `  orbitcam locate 44.43 26.10

  # Negative values need the flag terminator
  orbitcam locate -- -33.86 151.21`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}
			if err := (geotag.Point{Latitude: lat, Longitude: lon}).Validate(); err != nil {
				return err
			}

			cfg, err := root.load()
			if err != nil {
				return err
			}
			index, err := geocode.Load(cfg.Resolve(cfg.GeoIndexPath))
			if err != nil {
				return err
			}

			info, err := index.Resolve(lat, lon)
			if err != nil {
				return err
			}

			tag := geotag.New(geotag.Point{Latitude: lat, Longitude: lon})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s, %s", info.CountryCode, info.Name)
			if info.Admin1 != "" {
				fmt.Fprintf(out, " (%s)", info.Admin1)
			}
			fmt.Fprintf(out, "\nEXIF: %s %s, %s %s\n", tag.Latitude, tag.LatitudeRef, tag.Longitude, tag.LongitudeRef)
			return nil
		},
	}
}

package bridge

import (
	"context"
	"strconv"
	"strings"

	"github.com/apkfleet/apkfleet-cli/internal/pool"
	"github.com/apkfleet/apkfleet-cli/pkg/deploy"
)

// EnrichedDevices lists devices and fills in the capability snapshot the
// matcher needs (ABIs, density, SDK, locale). Property round-trips run with
// bounded concurrency; offline devices are returned with state only.
func (b *Bridge) EnrichedDevices(ctx context.Context, workers int) ([]deploy.DeviceProps, error) {
	devices, err := b.Devices(ctx)
	if err != nil {
		return nil, err
	}

	bySerial := make(map[string]Device, len(devices))
	var serials []string
	for _, d := range devices {
		bySerial[d.Serial] = d
		serials = append(serials, d.Serial)
	}

	p := pool.New(pool.WithWorkerLimit[deploy.DeviceProps](workers))
	results := p.Run(ctx, serials, func(ctx context.Context, serial string) (deploy.DeviceProps, error) {
		device := bySerial[serial]
		props := deploy.DeviceProps{
			Serial: serial,
			Model:  device.Model,
			State:  device.State,
		}

		if device.State != "device" {
			return props, nil
		}

		raw, err := b.Properties(ctx, serial)
		if err != nil {
			// Keep the device with whatever we know; matching will be
			// permissive on missing capabilities.
			return props, nil
		}

		props.ABIs = parseABIList(raw)
		props.Density = parseIntProp(raw, "ro.sf.lcd_density")
		props.SDK = parseIntProp(raw, "ro.build.version.sdk")
		props.Locale = firstProp(raw, "persist.sys.locale", "ro.product.locale")
		if props.Model == "" {
			props.Model = raw["ro.product.model"]
		}

		return props, nil
	})

	enriched := make([]deploy.DeviceProps, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		enriched = append(enriched, r.Value)
	}

	return enriched, nil
}

func parseABIList(props map[string]string) []string {
	if list := props["ro.product.cpu.abilist"]; list != "" {
		var abis []string
		for _, abi := range strings.Split(list, ",") {
			if abi = strings.TrimSpace(abi); abi != "" {
				abis = append(abis, abi)
			}
		}
		return abis
	}

	// Pre-Lollipop fallback properties.
	var abis []string
	for _, key := range []string{"ro.product.cpu.abi", "ro.product.cpu.abi2"} {
		if abi := strings.TrimSpace(props[key]); abi != "" {
			abis = append(abis, abi)
		}
	}
	return abis
}

func parseIntProp(props map[string]string, key string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(props[key])); err == nil {
		return v
	}
	return 0
}

func firstProp(props map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(props[key]); v != "" {
			return v
		}
	}
	return ""
}

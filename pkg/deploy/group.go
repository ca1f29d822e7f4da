package deploy

import "fmt"

// GroupWarning explains why a package group was dropped during grouping.
type GroupWarning struct {
	PackageName string
	Reason      string
}

// BuildUnits groups classified files by package name into installation units.
// A package with a single file and no base flag is coerced into a synthetic
// base. Groups with no base among several files, or with more than one base,
// are dropped with a warning.
func BuildUnits(files []ApkFile) ([]InstallationUnit, []GroupWarning) {
	groups := make(map[string][]ApkFile)
	var order []string

	for _, f := range files {
		if _, seen := groups[f.PackageName]; !seen {
			order = append(order, f.PackageName)
		}
		groups[f.PackageName] = append(groups[f.PackageName], f)
	}

	var units []InstallationUnit
	var warnings []GroupWarning

	for _, pkg := range order {
		members := groups[pkg]

		// Single-APK convenience case: a lone file installs as its own base.
		if len(members) == 1 && !members[0].IsBase {
			f := members[0]
			f.IsBase = true
			f.Class = ClassBase
			units = append(units, InstallationUnit{Base: f})
			continue
		}

		var base *ApkFile
		var splits []ApkFile
		baseCount := 0

		for i := range members {
			if members[i].IsBase {
				baseCount++
				if base == nil {
					base = &members[i]
				}
			} else {
				splits = append(splits, members[i])
			}
		}

		switch {
		case baseCount == 0:
			warnings = append(warnings, GroupWarning{
				PackageName: pkg,
				Reason:      fmt.Sprintf("no base APK among %d files", len(members)),
			})
		case baseCount > 1:
			warnings = append(warnings, GroupWarning{
				PackageName: pkg,
				Reason:      fmt.Sprintf("%d base APKs found, expected exactly one", baseCount),
			})
		default:
			// Split order stays insertion order here; the validator decides
			// the final install order.
			units = append(units, InstallationUnit{Base: *base, Splits: splits})
		}
	}

	return units, warnings
}

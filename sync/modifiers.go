package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

// knownModifiers lists every modifier a mapping expression may pipe
// through: the ones registered below plus the gjson built-ins. Expressions
// referencing anything else fail validation before the sync run touches
// the remote system.
var knownModifiers = map[string]bool{
	"countryName": true,
	"phone":       true,
	"toLower":     true,
	"toUpper":     true,
	"now":         true,
	// gjson built-ins
	"pretty": true, "ugly": true, "reverse": true, "this": true,
	"flatten": true, "join": true, "valid": true, "keys": true,
	"values": true, "tostr": true, "fromstr": true, "group": true,
	"dig": true,
}

func init() {

	gjson.AddModifier("countryName", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s) // matches on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.String())
	})

	gjson.AddModifier("phone", func(json, arg string) string {
		countryCode := arg
		number := strings.Trim(gjson.Parse(json).String(), `"`)
		if strings.HasPrefix(number, fmt.Sprintf("+%s", countryCode)) {
			number = strings.TrimPrefix(number, fmt.Sprintf("+%s", countryCode))
		} else {
			i, err := strconv.Atoi(countryCode)
			if err == nil {
				var num *libphonenumber.PhoneNumber
				num, err = libphonenumber.Parse(number, libphonenumber.GetRegionCodeForCountryCode(i))
				if err == nil {
					countryCode = fmt.Sprintf("%d", num.GetCountryCode())
					number = libphonenumber.GetNationalSignificantNumber(num)
				}
			}
			if err != nil {
				countryCode = ""
			}
		}
		return fmt.Sprintf(`"+%s%s"`, countryCode, number)
	})

	gjson.AddModifier("toLower", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		return fmt.Sprintf(`"%s"`, strings.ToLower(res.String()))
	})

	gjson.AddModifier("toUpper", func(json, arg string) string {
		res := gjson.Parse(json)
		if !res.Exists() {
			return ""
		}
		return fmt.Sprintf(`"%s"`, strings.ToUpper(res.String()))
	})

	gjson.AddModifier("now", func(json, arg string) string {
		return fmt.Sprintf(`"%s"`, time.Now().UTC().Format(time.RFC3339))
	})
}

package checkin

// Location is a preset sign-in spot. JSON is the payload string the
// portal expects verbatim, point is [longitude, latitude].
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	JSON    string `json:"location_json"`
}

var (
	LocationA4 = Location{
		Name:    "A4教学楼",
		Address: "四川省宜宾市翠屏区白沙湾街道大学路四川轻化工大学(宜宾校区)A4教学楼",
		JSON:    `{"point":[104.401341,28.482517],"address":"四川省宜宾市翠屏区白沙湾街道大学路四川轻化工大学(宜宾校区)A4教学楼"}`,
	}
	LocationComputerCollege = Location{
		Name:    "计算机学院",
		Address: "四川省宜宾市翠屏区白沙湾街道大学路四川轻化工大学(宜宾校区)计算机学院",
		JSON:    `{"point":[104.401151,28.483207],"address":"四川省宜宾市翠屏区白沙湾街道大学路四川轻化工大学(宜宾校区)计算机学院"}`,
	}
)

// Locations lists the known spots, the first entry is the default.
var Locations = []Location{LocationA4, LocationComputerCollege}

// LocationByName returns the preset spot with that name, falling back
// to the default when the name is unknown or empty.
func LocationByName(name string) Location {
	for _, loc := range Locations {
		if loc.Name == name {
			return loc
		}
	}
	return LocationA4
}

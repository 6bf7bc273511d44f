package catalog

import "github.com/shopspring/decimal"

func aircraft(name, description string, price int64, category, image string, stock int, featured bool) Product {
	return Product{
		Name:        name,
		Description: description,
		Price:       decimal.NewFromInt(price),
		Category:    category,
		ImageURL:    image,
		Stock:       stock,
		Featured:    featured,
	}
}

// DefaultProducts is the listing set inserted into an empty catalog.
func DefaultProducts() []Product {
	return []Product{
		aircraft("Gulfstream G650", "Ultra-long-range business jet with luxurious interior and advanced avionics.", 65000000, "Business", "/images/g650.jpg", 3, true),
		aircraft("Dassault Falcon 8X", "Three-engine long-range business jet with excellent fuel efficiency.", 59000000, "Business", "/images/falcon8x.jpg", 2, true),
		aircraft("Bombardier Global 7500", "Luxurious and spacious ultra-long-range private jet.", 73000000, "Business", "/images/global7500.jpg", 2, true),
		aircraft("Cessna Citation XLS+", "Mid-size business jet with excellent reliability and performance.", 13500000, "Business", "/images/xlsplus.jpg", 5, false),
		aircraft("Pilatus PC-24", "Versatile light jet with great short runway performance.", 10500000, "Business", "/images/pc24.jpg", 4, false),
		aircraft("Embraer Phenom 300E", "Popular light business jet with excellent speed and range.", 9300000, "Business", "/images/phenom300e.jpg", 6, false),
		aircraft("HondaJet Elite", "Innovative very light jet with over-the-wing engine mounts.", 5400000, "Business", "/images/hondajet.jpg", 8, false),
		aircraft("Learjet 75 Liberty", "Light business jet with great speed and comfort.", 13000000, "Business", "/images/learjet75.jpg", 3, false),
		aircraft("Cessna Citation Latitude", "Super mid-size jet with spacious cabin and long range.", 18000000, "Business", "/images/citationlatitude.jpg", 4, false),
		aircraft("Gulfstream G280", "Super mid-size jet with great speed and cabin comfort.", 24500000, "Business", "/images/g280.jpg", 3, false),
		aircraft("Dassault Falcon 2000LXS", "Twin-engine business jet with excellent range and comfort.", 34000000, "Business", "/images/falcon2000.jpg", 2, false),
		aircraft("Embraer Legacy 500", "Mid-size jet with spacious cabin and modern avionics.", 19000000, "Business", "/images/legacy500.jpg", 3, false),

		aircraft("Airbus ACH160 Helicopter", "Advanced light helicopter designed for luxury and speed.", 12500000, "Helicopter", "/images/ach160.jpg", 4, true),
		aircraft("Bell 525 Relentless", "Next-gen super-medium helicopter with fly-by-wire controls.", 13000000, "Helicopter", "/images/bell525.jpg", 2, false),
		aircraft("Sikorsky S-76D", "Medium-size commercial helicopter with great range.", 13000000, "Helicopter", "/images/s76d.jpg", 3, false),
		aircraft("AgustaWestland AW139", "Medium utility helicopter widely used for VIP transport.", 12000000, "Helicopter", "/images/aw139.jpg", 4, false),
		aircraft("Eurocopter EC130", "Light utility helicopter with quiet operation.", 2800000, "Helicopter", "/images/ec130.jpg", 6, false),
		aircraft("Robinson R44", "Popular four-seat light helicopter.", 500000, "Helicopter", "/images/r44.jpg", 10, false),
		aircraft("Bell 407GXi", "Light single-engine helicopter with smooth performance.", 4500000, "Helicopter", "/images/bell407.jpg", 5, false),
		aircraft("Sikorsky S-92", "Heavy-lift helicopter for offshore and VIP transport.", 27000000, "Helicopter", "/images/s92.jpg", 2, false),
		aircraft("AgustaWestland AW109", "Lightweight twin-engine helicopter for VIP travel.", 6000000, "Helicopter", "/images/aw109.jpg", 4, false),

		aircraft("Textron King Air 350i", "Turboprop aircraft popular for short and mid-range travel.", 7500000, "Turboprop", "/images/kingair350i.jpg", 6, true),
		aircraft("Beechcraft King Air 250", "Reliable turboprop for business and utility use.", 4900000, "Turboprop", "/images/kingair250.jpg", 8, false),
		aircraft("Pilatus PC-12 NGX", "Single-engine turboprop with excellent versatility.", 4800000, "Turboprop", "/images/pc12ngx.jpg", 7, false),
		aircraft("Cessna Caravan 208B", "Versatile turboprop for utility and passenger missions.", 2800000, "Turboprop", "/images/caravan208b.jpg", 12, false),
		aircraft("Pilatus PC-6 Porter", "STOL utility aircraft for rugged operations.", 2000000, "Turboprop", "/images/pc6porter.jpg", 5, false),

		aircraft("Mitsubishi SpaceJet M90", "Regional jet with focus on fuel efficiency and comfort.", 25000000, "Commercial", "/images/spacejetm90.jpg", 3, false),

		aircraft("Cirrus Vision Jet", "Personal jet with single-engine and advanced safety features.", 2400000, "Light Aircraft", "/images/cirrusvision.jpg", 8, false),
		aircraft("Cirrus SR22", "Single-engine piston aircraft with advanced avionics.", 800000, "Light Aircraft", "/images/sr22.jpg", 15, false),
		aircraft("Diamond DA62", "Twin-engine light aircraft with great fuel economy.", 1000000, "Light Aircraft", "/images/da62.jpg", 6, false),
		aircraft("Beechcraft Baron G58", "Twin piston aircraft perfect for personal/business use.", 1600000, "Light Aircraft", "/images/baron_g58.jpg", 4, false),
	}
}

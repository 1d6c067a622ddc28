package schedule

// Coordinates of a known venue.
type VenueCoords struct {
	Lat     float64
	Lon     float64
	Country string
}

// venueCoords covers the UK racecourses and USA racetracks tracked by the
// collector. Schedule entries for other venues need explicit coordinates or a
// geocoder key.
var venueCoords = map[string]VenueCoords{
	// UK racecourses
	"Newbury":       {51.4008, -1.3267, "UK"},
	"Cheltenham":    {51.9117, -2.0493, "UK"},
	"Ascot":         {51.4088, -0.6764, "UK"},
	"Kempton Park":  {51.4175, -0.3867, "UK"},
	"Lingfield":     {51.1817, -0.0100, "UK"},
	"Worcester":     {52.1886, -2.2274, "UK"},
	"Aintree":       {53.4775, -2.9497, "UK"},
	"York":          {53.9536, -1.0353, "UK"},
	"Sandown":       {51.3867, -0.3644, "UK"},
	"Haydock":       {53.4750, -2.6503, "UK"},
	"Doncaster":     {53.5229, -1.0958, "UK"},
	"Newmarket":     {52.2438, 0.3611, "UK"},
	"Goodwood":      {50.8692, -0.7464, "UK"},
	"Epsom":         {51.3178, -0.2617, "UK"},
	"Ayr":           {55.4583, -4.6333, "UK"},
	"Newcastle":     {54.9783, -1.6178, "UK"},
	"Chepstow":      {51.6431, -2.6764, "UK"},
	"Fontwell":      {50.8667, -0.6167, "UK"},
	"Ludlow":        {52.3667, -2.7333, "UK"},
	"Market Rasen":  {53.4333, -0.3333, "UK"},
	"Sedgefield":    {54.6667, -1.4667, "UK"},
	"Southwell":     {53.0833, -0.9500, "UK"},
	"Uttoxeter":     {52.9000, -1.8667, "UK"},
	"Wetherby":      {53.9333, -1.3833, "UK"},
	"Wolverhampton": {52.5833, -2.1333, "UK"},
	"Bangor-on-Dee": {52.9910, -2.9235, "UK"},
	"Bath":          {51.4183, -2.4094, "UK"},
	"Brighton":      {50.8248, -0.1072, "UK"},
	"Chester":       {53.1852, -2.8932, "UK"},
	"Ffos Las":      {51.7311, -4.2400, "UK"},
	"Hexham":        {54.9522, -2.1245, "UK"},
	"Newton Abbot":  {50.5365, -3.5920, "UK"},
	"Plumpton":      {50.9216, -0.0570, "UK"},
	"Ripon":         {54.1207, -1.4923, "UK"},
	"Yarmouth":      {52.6263, 1.7338, "UK"},

	// USA racetracks
	"Churchill Downs": {38.2048, -85.7702, "USA"},
	"Keeneland":       {38.0403, -84.5909, "USA"},
	"Santa Anita":     {34.1395, -118.0377, "USA"},
	"Del Mar":         {32.9789, -117.2651, "USA"},
	"Gulfstream Park": {25.9898, -80.1373, "USA"},
	"Belmont Park":    {40.7155, -73.7201, "USA"},
	"Saratoga":        {43.0687, -73.7896, "USA"},
	"Pimlico":         {39.3419, -76.6653, "USA"},
}

// LookupVenue returns the coordinates of a known venue.
func LookupVenue(venue string) (VenueCoords, bool) {
	c, ok := venueCoords[venue]
	return c, ok
}

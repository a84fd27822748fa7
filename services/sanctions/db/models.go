package db

type Download struct {
	DownloadToken string
	Status        string
	Path          string
	Error         string
	UpdatedAt     int64
}

type Record struct {
	DownloadToken  string
	RowIndex       string
	CaseNumber     string
	SubjectName    string
	FacilityUnit   string
	Sector         string
	ResolutionCode string
	PageFirst      int64
	SeenAt         int64
}

package pypi

type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Author      string `json:"author"`
	HomePage    string `json:"home_page"`
}

type Digests struct {
	MD5    string `json:"md5"`
	SHA256 string `json:"sha256"`
}

type File struct {
	Filename    string  `json:"filename"`
	PackageType string  `json:"packagetype"`
	Digests     Digests `json:"digests"`
	Yanked      bool    `json:"yanked"`
}

// Package is the subset of https://pypi.org/pypi/<name>/json we read.
// URLs lists the distribution files of the current release.
type Package struct {
	Info Info   `json:"info"`
	URLs []File `json:"urls"`
}

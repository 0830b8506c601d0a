package wix

import "encoding/xml"

// These types cover the subset of the WiX v3 schema the product
// renderer writes and the heat output we read back.
// http://wixtoolset.org/documentation/manual/v3/xsd/wix/

type YesNoType string

const (
	Yes YesNoType = "yes"
	No  YesNoType = "no"
)

type Wix struct {
	XMLName   xml.Name   `xml:"http://schemas.microsoft.com/wix/2006/wi Wix"`
	Product   *Product   `xml:",omitempty"`
	Fragments []Fragment `xml:"Fragment,omitempty"`
}

type Product struct {
	Id           string `xml:",attr"`
	Name         string `xml:",attr"`
	Language     int    `xml:",attr"`
	Version      string `xml:",attr"`
	Manufacturer string `xml:",attr"`
	UpgradeCode  string `xml:",attr"`

	Package       Package
	MajorUpgrade  *MajorUpgrade  `xml:",omitempty"`
	Upgrade       *Upgrade       `xml:",omitempty"`
	Conditions    []Condition    `xml:"Condition,omitempty"`
	MediaTemplate MediaTemplate
	Properties    []Property     `xml:"Property,omitempty"`
	SetProperties []SetProperty  `xml:"SetProperty,omitempty"`
	Directories   []Directory    `xml:"Directory,omitempty"`
	Components    []Component    `xml:"Component,omitempty"`
	Features      []Feature      `xml:"Feature,omitempty"`
	CustomActions []CustomAction `xml:"CustomAction,omitempty"`
	UI            *UI            `xml:",omitempty"`
}

type Package struct {
	Id                string    `xml:",attr"`
	InstallerVersion  int       `xml:",attr"`
	Compressed        YesNoType `xml:",attr"`
	InstallScope      string    `xml:",attr"`
	InstallPrivileges string    `xml:",attr"`
	Platform          string    `xml:",attr,omitempty"`
	Description       string    `xml:",attr,omitempty"`
	Manufacturer      string    `xml:",attr,omitempty"`
}

type MajorUpgrade struct {
	AllowDowngrades          YesNoType `xml:",attr,omitempty"`
	AllowSameVersionUpgrades YesNoType `xml:",attr,omitempty"`
	DowngradeErrorMessage    string    `xml:",attr,omitempty"`
}

type Upgrade struct {
	Id              string           `xml:",attr"`
	UpgradeVersions []UpgradeVersion `xml:"UpgradeVersion"`
}

type UpgradeVersion struct {
	Minimum        string    `xml:",attr"`
	IncludeMinimum YesNoType `xml:",attr,omitempty"`
	OnlyDetect     YesNoType `xml:",attr,omitempty"`
	Property       string    `xml:",attr"`
}

type Condition struct {
	Message   string `xml:",attr,omitempty"`
	Condition string `xml:",chardata"`
}

type MediaTemplate struct {
	EmbedCab         YesNoType `xml:",attr"`
	CompressionLevel string    `xml:",attr,omitempty"`
}

type Property struct {
	Id     string    `xml:",attr"`
	Value  string    `xml:",attr,omitempty"`
	Secure YesNoType `xml:",attr,omitempty"`
}

type SetProperty struct {
	Id       string `xml:",attr"`
	Value    string `xml:",attr"`
	Before   string `xml:",attr,omitempty"`
	Sequence string `xml:",attr,omitempty"`
}

type Directory struct {
	Id          string      `xml:",attr"`
	Name        string      `xml:",attr,omitempty"`
	Directories []Directory `xml:"Directory,omitempty"`
	Components  []Component `xml:"Component,omitempty"`
}

type DirectoryRef struct {
	Id          string      `xml:",attr"`
	Directories []Directory `xml:"Directory,omitempty"`
	Components  []Component `xml:"Component,omitempty"`
}

type Component struct {
	Id             string           `xml:",attr"`
	Directory      string           `xml:",attr,omitempty"`
	Guid           string           `xml:",attr,omitempty"`
	Files          []File           `xml:"File,omitempty"`
	Shortcuts      []Shortcut       `xml:"Shortcut,omitempty"`
	RemoveFiles    []RemoveFile     `xml:"RemoveFile,omitempty"`
	RemoveFolders  []RemoveFolder   `xml:"RemoveFolder,omitempty"`
	RemoveFolderEx []RemoveFolderEx `xml:",omitempty"`
	RegistryValues []RegistryValue  `xml:"RegistryValue,omitempty"`
}

type File struct {
	Id      string    `xml:",attr,omitempty"`
	KeyPath YesNoType `xml:",attr,omitempty"`
	Source  string    `xml:",attr"`
}

type Shortcut struct {
	Id               string `xml:",attr"`
	Name             string `xml:",attr"`
	Description      string `xml:",attr,omitempty"`
	Target           string `xml:",attr"`
	WorkingDirectory string `xml:",attr,omitempty"`
}

type RemoveFile struct {
	Id       string `xml:",attr"`
	Name     string `xml:",attr"`
	Property string `xml:",attr"`
	On       string `xml:",attr"`
}

type RemoveFolder struct {
	Id        string `xml:",attr"`
	Directory string `xml:",attr,omitempty"`
	Property  string `xml:",attr,omitempty"`
	On        string `xml:",attr"`
}

// RemoveFolderEx implements
// http://wixtoolset.org/documentation/manual/v3/xsd/util/removefolderex.html
// It deletes a folder tree named by a property, files and all.
type RemoveFolderEx struct {
	XMLName  xml.Name `xml:"http://schemas.microsoft.com/wix/UtilExtension RemoveFolderEx"`
	Id       string   `xml:",attr,omitempty"`
	On       string   `xml:",attr"`
	Property string   `xml:",attr"`
}

type RegistryValue struct {
	Root    string    `xml:",attr"`
	Key     string    `xml:",attr"`
	Name    string    `xml:",attr,omitempty"`
	Type    string    `xml:",attr"`
	Value   string    `xml:",attr"`
	KeyPath YesNoType `xml:",attr,omitempty"`
}

type Feature struct {
	Id                 string              `xml:",attr"`
	Title              string              `xml:",attr,omitempty"`
	Description        string              `xml:",attr,omitempty"`
	Level              int                 `xml:",attr"`
	Absent             string              `xml:",attr,omitempty"`
	ComponentGroupRefs []ComponentGroupRef `xml:"ComponentGroupRef,omitempty"`
	ComponentRefs      []ComponentRef      `xml:"ComponentRef,omitempty"`
}

type ComponentGroupRef struct {
	Id string `xml:",attr"`
}

type ComponentRef struct {
	Id string `xml:",attr"`
}

type ComponentGroup struct {
	Id         string      `xml:",attr"`
	Components []Component `xml:"Component,omitempty"`
}

type CustomAction struct {
	Id          string    `xml:",attr"`
	BinaryKey   string    `xml:",attr"`
	DllEntry    string    `xml:",attr"`
	Impersonate YesNoType `xml:",attr,omitempty"`
	Return      string    `xml:",attr,omitempty"`
}

type UI struct {
	UIRefs    []UIRef   `xml:"UIRef,omitempty"`
	Publishes []Publish `xml:"Publish,omitempty"`
}

type UIRef struct {
	Id string `xml:",attr"`
}

type Publish struct {
	Dialog    string `xml:",attr"`
	Control   string `xml:",attr"`
	Event     string `xml:",attr"`
	Value     string `xml:",attr"`
	Order     int    `xml:",attr,omitempty"`
	Condition string `xml:",chardata"`
}

type Fragment struct {
	DirectoryRefs   []DirectoryRef   `xml:"DirectoryRef,omitempty"`
	ComponentGroups []ComponentGroup `xml:"ComponentGroup,omitempty"`
}

// RetFiles returns every File in the fragments, as harvested by heat.
func (w *Wix) RetFiles() []File {
	var files []File
	for _, f := range w.Fragments {
		for _, dr := range f.DirectoryRefs {
			files = append(files, componentFiles(dr.Components)...)
			for _, d := range dr.Directories {
				files = append(files, d.files()...)
			}
		}
		for _, cg := range f.ComponentGroups {
			files = append(files, componentFiles(cg.Components)...)
		}
	}
	return files
}

func (d Directory) files() []File {
	files := componentFiles(d.Components)
	for _, sub := range d.Directories {
		files = append(files, sub.files()...)
	}
	return files
}

func componentFiles(components []Component) []File {
	var files []File
	for _, c := range components {
		files = append(files, c.Files...)
	}
	return files
}

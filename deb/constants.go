package deb

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldPackage          ControlField = "Package"
	FieldVersion          ControlField = "Version"
	FieldArchitecture     ControlField = "Architecture"
	FieldVcsBrowser       ControlField = "Vcs-Browser"
	FieldVcsGit           ControlField = "Vcs-Git"
	FieldVcsHg            ControlField = "Vcs-Hg"
	FieldVcsSvn           ControlField = "Vcs-Svn"
	FieldHomepage         ControlField = "Homepage"
	FieldSection          ControlField = "Section"
	FieldPriority         ControlField = "Priority"
	FieldStandardsVersion ControlField = "Standards-Version"
	FieldMaintainer       ControlField = "Maintainer"
	FieldInstalledSize    ControlField = "Installed-Size"
	FieldDepends          ControlField = "Depends"
	FieldPreDepends       ControlField = "Pre-Depends"
	FieldRecommends       ControlField = "Recommends"
	FieldSuggests         ControlField = "Suggests"
	FieldEnhances         ControlField = "Enhances"
	FieldConflicts        ControlField = "Conflicts"
	FieldBreaks           ControlField = "Breaks"
	FieldReplaces         ControlField = "Replaces"
	FieldProvides         ControlField = "Provides"
	FieldDescription      ControlField = "Description"
)

// StandardsVersion is the debian-policy version the generated control
// file claims conformance with.
//
// Reference: https://www.debian.org/doc/debian-policy/upgrading-checklist.html
const StandardsVersion = "3.9.4"

// ControlFile represents a standard file found in the control archive.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileMd5sums   ControlFile = "md5sums"
	FileConffiles ControlFile = "conffiles"
	FileTriggers  ControlFile = "triggers"
	FilePreinst   ControlFile = "preinst"
	FilePostinst  ControlFile = "postinst"
	FilePrerm     ControlFile = "prerm"
	FilePostrm    ControlFile = "postrm"
	FileConfig    ControlFile = "config"
	FileTemplates ControlFile = "templates"
)

// MaintainerScripts lists the hook scripts dpkg runs during the package
// lifecycle, in the order they are looked up.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-maintainerscripts.html
var MaintainerScripts = []ControlFile{FileConfig, FilePreinst, FilePostinst, FilePrerm, FilePostrm, FileTemplates}

// PackageFile represents a member of the outer .deb archive (ar format).
// The three members must appear in exactly this order.
//
// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html#FORMAT
type PackageFile string

const (
	PkgDebianBinary PackageFile = "debian-binary"
	PkgControlTarGz PackageFile = "control.tar.gz"
	PkgDataTarXz    PackageFile = "data.tar.xz"
)

// debianBinaryContent is the format version stored in the debian-binary
// member.
const debianBinaryContent = "2.0\n"

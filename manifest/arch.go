package manifest

import "strings"

// DebianArch maps a compiler target triple to the Debian architecture
// name used in control files and output filenames.
//
// Reference: https://wiki.debian.org/Multiarch/Tuples
func DebianArch(triple string) string {
	parts := strings.Split(triple, "-")
	arch := parts[0]
	abi := ""
	if len(parts) > 1 {
		abi = parts[len(parts)-1]
	}
	switch {
	case arch == "aarch64":
		return "arm64"
	case arch == "mips64" && abi == "gnuabin32":
		return "mipsn32"
	case arch == "mips64el" && abi == "gnuabin32":
		return "mipsn32el"
	case arch == "mipsisa32r6":
		return "mipsr6"
	case arch == "mipsisa32r6el":
		return "mipsr6el"
	case arch == "mipsisa64r6" && abi == "gnuabi64":
		return "mips64r6"
	case arch == "mipsisa64r6" && abi == "gnuabin32":
		return "mipsn32r6"
	case arch == "mipsisa64r6el" && abi == "gnuabi64":
		return "mips64r6el"
	case arch == "mipsisa64r6el" && abi == "gnuabin32":
		return "mipsn32r6el"
	case arch == "powerpc" && abi == "gnuspe":
		return "powerpcspe"
	case arch == "powerpc64":
		return "ppc64"
	case arch == "powerpc64le":
		return "ppc64el"
	case arch == "i586", arch == "i686", arch == "x86":
		return "i386"
	case arch == "x86_64" && abi == "gnux32":
		return "x32"
	case arch == "x86_64":
		return "amd64"
	case strings.HasPrefix(arch, "riscv64"):
		return "riscv64"
	case strings.HasPrefix(arch, "arm") && strings.HasSuffix(abi, "hf"):
		return "armhf"
	case strings.HasPrefix(arch, "arm"):
		return "armel"
	}
	return arch
}

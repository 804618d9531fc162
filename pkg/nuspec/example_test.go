package nuspec_test

import (
	"fmt"

	"github.com/matzehuels/setupdb/pkg/nuspec"
)

func ExampleParse() {
	doc := `<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Npgsql</id>
    <version>4.1.3</version>
    <dependencies>
      <group targetFramework=".NETCoreApp3.0">
        <dependency id="Microsoft.Bcl.AsyncInterfaces" version="[1.1.0, )" />
        <dependency id="System.Memory" version="4.5.3" />
      </group>
    </dependencies>
  </metadata>
</package>`

	m, err := nuspec.Parse([]byte(doc))
	if err != nil {
		panic(err)
	}
	fmt.Println(m.ID, m.Version, m.References(m.ID))
	for _, d := range m.RetainedDependencies() {
		fmt.Println(d.ID, nuspec.PinnedVersion(d.Version))
	}
	// Output:
	// Npgsql 4.1.3 [Npgsql.dll]
	// Microsoft.Bcl.AsyncInterfaces 1.1.0
}
